package ytmusic

import "strings"

// The catalog API nests everything in renderer wrappers. These helpers
// walk map/slice trees without panicking on missing keys, so parsers can
// probe optional paths freely.

func navMap(v interface{}, path ...string) map[string]interface{} {
	for _, key := range path {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = m[key]
	}
	m, _ := v.(map[string]interface{})
	return m
}

func navSlice(v interface{}, path ...string) []interface{} {
	last := len(path) - 1
	if last >= 0 {
		v = navMap(v, path[:last]...)
		if m, ok := v.(map[string]interface{}); ok {
			v = m[path[last]]
		} else {
			return nil
		}
	}
	s, _ := v.([]interface{})
	return s
}

func navString(v interface{}, path ...string) string {
	last := len(path) - 1
	if last >= 0 {
		v = navMap(v, path[:last]...)
		if m, ok := v.(map[string]interface{}); ok {
			v = m[path[last]]
		} else {
			return ""
		}
	}
	s, _ := v.(string)
	return s
}

func navInt(v interface{}, path ...string) int {
	last := len(path) - 1
	if last >= 0 {
		v = navMap(v, path[:last]...)
		if m, ok := v.(map[string]interface{}); ok {
			v = m[path[last]]
		} else {
			return 0
		}
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		return parseInt(n)
	}
	return 0
}

func parseInt(s string) int {
	n := 0
	seen := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			seen = true
		} else if seen {
			break
		}
	}
	return n
}

// runsText joins the text runs of a formatted-string node.
func runsText(v interface{}, path ...string) string {
	runs := navSlice(v, append(path, "runs")...)
	if len(runs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, run := range runs {
		b.WriteString(navString(run, "text"))
	}
	return b.String()
}

// firstRunText returns only the first run, which in flex columns is the
// entity name without the " • " separators.
func firstRunText(v interface{}, path ...string) string {
	runs := navSlice(v, append(path, "runs")...)
	if len(runs) == 0 {
		return ""
	}
	return navString(runs[0], "text")
}

// lastThumbnail picks the largest thumbnail variant.
func lastThumbnail(v interface{}, path ...string) string {
	thumbs := navSlice(v, append(path, "thumbnails")...)
	if len(thumbs) == 0 {
		return ""
	}
	return navString(thumbs[len(thumbs)-1], "url")
}

// musicThumbnail resolves the standard musicThumbnailRenderer wrapper.
func musicThumbnail(item map[string]interface{}) string {
	return lastThumbnail(item, "thumbnail", "musicThumbnailRenderer", "thumbnail")
}

// durationToSeconds parses "H:MM:SS" or "M:SS" timestamps.
func durationToSeconds(d string) int {
	if d == "" {
		return 0
	}
	parts := strings.Split(d, ":")
	total := 0
	for _, p := range parts {
		total = total*60 + parseInt(strings.TrimSpace(p))
	}
	return total
}
