package ytmusic

import (
	"context"
	"fmt"
	"strings"
)

// Search filter params as the web client sends them. The leading bytes
// select the result type, the tail keeps spelling correction enabled.
const (
	searchParamsSongs    = "EgWKAQIIAWoMEA4QChADEAQQCRAF"
	searchParamsPodcasts = "EgWKAQJQAWoMEA4QChADEAQQCRAF"
	searchParamsEpisodes = "EgWKAQJIAWoMEA4QChADEAQQCRAF"
)

// SearchSongs searches tracks by free text.
func (c *Client) SearchSongs(ctx context.Context, query string, limit int) ([]Song, error) {
	items, err := c.search(ctx, query, searchParamsSongs, limit)
	if err != nil {
		return nil, err
	}
	songs := make([]Song, 0, len(items))
	for _, item := range items {
		if s := parseSongItem(item); s.VideoID != "" {
			songs = append(songs, s)
		}
	}
	return songs, nil
}

// SearchByGenre searches tracks for a genre keyword.
func (c *Client) SearchByGenre(ctx context.Context, genre string, limit int) ([]Song, error) {
	return c.SearchSongs(ctx, fmt.Sprintf("%s music", genre), limit)
}

// SearchPodcasts searches shows by free text.
func (c *Client) SearchPodcasts(ctx context.Context, query string, limit int) ([]Podcast, error) {
	items, err := c.search(ctx, query, searchParamsPodcasts, limit)
	if err != nil {
		return nil, err
	}
	podcasts := make([]Podcast, 0, len(items))
	for _, item := range items {
		if p := parsePodcastItem(item); p.PodcastID != "" {
			podcasts = append(podcasts, p)
		}
	}
	return podcasts, nil
}

// SearchEpisodes searches podcast episodes by free text.
func (c *Client) SearchEpisodes(ctx context.Context, query string, limit int) ([]Episode, error) {
	items, err := c.search(ctx, query, searchParamsEpisodes, limit)
	if err != nil {
		return nil, err
	}
	episodes := make([]Episode, 0, len(items))
	for _, item := range items {
		if e := parseEpisodeItem(item); e.VideoID != "" {
			episodes = append(episodes, e)
		}
	}
	return episodes, nil
}

// search runs a filtered search and returns the raw shelf items.
func (c *Client) search(ctx context.Context, query, params string, limit int) ([]map[string]interface{}, error) {
	result, err := c.call(ctx, "search", map[string]interface{}{
		"query":  query,
		"params": params,
	})
	if err != nil {
		return nil, err
	}

	var items []map[string]interface{}
	tabs := navSlice(result, "contents", "tabbedSearchResultsRenderer", "tabs")
	for _, tab := range tabs {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			for _, entry := range navSlice(section, "musicShelfRenderer", "contents") {
				item := navMap(entry, "musicResponsiveListItemRenderer")
				if item == nil {
					continue
				}
				items = append(items, item)
				if limit > 0 && len(items) >= limit {
					return items, nil
				}
			}
		}
	}
	return items, nil
}

func flexColumnText(item map[string]interface{}, idx int) interface{} {
	cols := navSlice(item, "flexColumns")
	if idx >= len(cols) {
		return nil
	}
	return navMap(cols[idx], "musicResponsiveListItemFlexColumnRenderer", "text")
}

func itemVideoID(item map[string]interface{}) string {
	if id := navString(item, "playlistItemData", "videoId"); id != "" {
		return id
	}
	runs := navSlice(flexColumnText(item, 0), "runs")
	if len(runs) > 0 {
		return navString(runs[0], "navigationEndpoint", "watchEndpoint", "videoId")
	}
	return ""
}

func itemBrowseID(item map[string]interface{}) string {
	return navString(item, "navigationEndpoint", "browseEndpoint", "browseId")
}

// itemDuration finds the trailing timestamp in the secondary column, or
// the fixed column used by playlist views.
func itemDuration(item map[string]interface{}) string {
	fixed := navSlice(item, "fixedColumns")
	if len(fixed) > 0 {
		if d := firstRunText(navMap(fixed[0], "musicResponsiveListItemFixedColumnRenderer", "text")); d != "" {
			return d
		}
	}
	runs := navSlice(flexColumnText(item, 1), "runs")
	if len(runs) > 0 {
		last := navString(runs[len(runs)-1], "text")
		if strings.Contains(last, ":") {
			return strings.TrimSpace(last)
		}
	}
	return ""
}

func parseSongItem(item map[string]interface{}) Song {
	duration := itemDuration(item)
	return Song{
		VideoID:         itemVideoID(item),
		Title:           firstRunText(flexColumnText(item, 0)),
		Artist:          firstRunText(flexColumnText(item, 1)),
		Thumbnail:       musicThumbnail(item),
		Duration:        duration,
		DurationSeconds: durationToSeconds(duration),
		Type:            "song",
	}
}

func parsePodcastItem(item map[string]interface{}) Podcast {
	return Podcast{
		PodcastID: itemBrowseID(item),
		Title:     firstRunText(flexColumnText(item, 0)),
		Author:    firstRunText(flexColumnText(item, 1)),
		Thumbnail: musicThumbnail(item),
		Type:      "podcast",
	}
}

func parseEpisodeItem(item map[string]interface{}) Episode {
	duration := itemDuration(item)
	return Episode{
		VideoID:         itemVideoID(item),
		Title:           firstRunText(flexColumnText(item, 0)),
		Artist:          firstRunText(flexColumnText(item, 1)),
		Thumbnail:       musicThumbnail(item),
		Duration:        duration,
		DurationSeconds: durationToSeconds(duration),
		Type:            "episode",
	}
}
