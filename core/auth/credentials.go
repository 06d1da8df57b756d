package auth

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"EchoFM/logger"
)

const musicOrigin = "https://music.youtube.com"

// Credentials are the browser headers the upstream API expects, persisted
// in the same JSON shape a browser-header export produces.
type Credentials struct {
	Accept         string `json:"accept"`
	AcceptLanguage string `json:"accept-language"`
	Authorization  string `json:"authorization"`
	ContentType    string `json:"content-type"`
	Cookie         string `json:"cookie"`
	UserAgent      string `json:"user-agent"`
	XGoogAuthUser  string `json:"x-goog-authuser"`
	XOrigin        string `json:"x-origin"`
}

// CredentialStore persists upstream credentials on disk and serves them to
// the catalog client. An fsnotify watcher picks up out-of-band replacements
// of the credential file.
type CredentialStore struct {
	path string

	mu    sync.RWMutex
	creds *Credentials // nil when logged out

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewCredentialStore creates the store and loads existing credentials if
// the file is present.
func NewCredentialStore(path string) *CredentialStore {
	s := &CredentialStore{path: path, stop: make(chan struct{})}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load upstream credentials",
			logger.String("path", path),
			logger.ErrorField(err))
	}
	return s
}

func (s *CredentialStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("parse credential file: %w", err)
	}
	s.mu.Lock()
	s.creds = &creds
	s.mu.Unlock()
	return nil
}

// IsAuthenticated reports whether upstream credentials are available.
func (s *CredentialStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds != nil
}

// Credentials returns a copy of the current credentials, or nil.
func (s *CredentialStore) Credentials() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	c := *s.creds
	return &c
}

// Save accepts raw browser headers, a cookie string, or a cookie-export
// JSON dump, builds the credential set and persists it.
func (s *CredentialStore) Save(raw string) (*Credentials, error) {
	inputType := detectInputType(raw)
	logger.Info("saving upstream credentials", logger.String("inputType", inputType))

	var creds *Credentials
	switch inputType {
	case "cookies_json", "cookies_string":
		cookieStr := raw
		if inputType == "cookies_json" {
			cookieStr = cookieExportToString(raw)
		}
		creds = buildFromCookies(cookieStr)
	default:
		creds = parseRawHeaders(raw)
	}

	if creds.Cookie == "" {
		return nil, fmt.Errorf("no cookies found in the provided input")
	}
	if creds.Authorization == "" {
		logger.Warn("no SAPISID cookie found, upstream requests will likely be rejected")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return nil, fmt.Errorf("write credential file: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	c := *creds
	return &c, nil
}

// Logout removes the stored credentials.
func (s *CredentialStore) Logout() error {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// Apply sets the upstream headers on a request, regenerating the SAPISID
// hash with a current timestamp.
func (s *CredentialStore) Apply(req *http.Request) {
	creds := s.Credentials()
	if creds == nil {
		return
	}

	req.Header.Set("Accept", valueOr(creds.Accept, "*/*"))
	req.Header.Set("Accept-Language", valueOr(creds.AcceptLanguage, "en-US,en;q=0.9"))
	req.Header.Set("Content-Type", valueOr(creds.ContentType, "application/json"))
	req.Header.Set("Cookie", creds.Cookie)
	req.Header.Set("User-Agent", creds.UserAgent)
	req.Header.Set("X-Goog-AuthUser", valueOr(creds.XGoogAuthUser, "0"))
	req.Header.Set("X-Origin", musicOrigin)
	req.Header.Set("Origin", musicOrigin)
	req.Header.Set("Referer", musicOrigin+"/")

	if sapisid := extractSAPISID(creds.Cookie); sapisid != "" {
		req.Header.Set("Authorization", sapisidHash(sapisid, musicOrigin, time.Now()))
	} else if creds.Authorization != "" {
		req.Header.Set("Authorization", creds.Authorization)
	}
}

// Watch reloads credentials when the file changes on disk, so replacing
// browser.json without restarting the server takes effect immediately.
func (s *CredentialStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create credential watcher: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		watcher.Close()
		return fmt.Errorf("create credential directory: %w", err)
	}
	// Watch the directory, not the file: editors and uploads replace the
	// file by rename, which would kill a file-level watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch credential directory: %w", err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				switch {
				case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
					if err := s.load(); err != nil {
						logger.Warn("credential file changed but could not be loaded",
							logger.ErrorField(err))
					} else {
						logger.Info("upstream credentials reloaded")
					}
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					s.mu.Lock()
					s.creds = nil
					s.mu.Unlock()
					logger.Info("upstream credentials removed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("credential watcher error", logger.ErrorField(err))
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (s *CredentialStore) Close() {
	close(s.stop)
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.wg.Wait()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// detectInputType guesses what the user pasted: full request headers, a
// cookie-export JSON array, or a bare cookie string.
func detectInputType(raw string) string {
	stripped := strings.TrimSpace(raw)

	if strings.HasPrefix(stripped, "[") {
		return "cookies_json"
	}

	lines := strings.Split(stripped, "\n")
	if len(lines) > 1 {
		colonLines := 0
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.Contains(trimmed, ":") && !strings.HasPrefix(trimmed, "Cookie") {
				colonLines++
			}
		}
		if colonLines >= 2 {
			return "headers"
		}
	}

	for _, marker := range []string{"SAPISID", "HSID", "SSID", "__Secure-"} {
		if strings.Contains(stripped, marker) {
			return "cookies_string"
		}
	}

	return "headers"
}

// cookieExportToString converts a browser cookie-export JSON array
// ([{"name": ..., "value": ...}, ...]) into a Cookie header value.
func cookieExportToString(raw string) string {
	var cookies []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &cookies); err != nil {
		return strings.TrimSpace(raw)
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name != "" {
			parts = append(parts, c.Name+"="+c.Value)
		}
	}
	return strings.Join(parts, "; ")
}

// extractSAPISID pulls the SAPISID (or a __Secure-*PAPISID variant) out of
// a cookie string.
func extractSAPISID(cookieStr string) string {
	for _, cookie := range strings.Split(cookieStr, ";") {
		cookie = strings.TrimSpace(cookie)
		name, value, found := strings.Cut(cookie, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(name) {
		case "SAPISID", "__Secure-1PAPISID", "__Secure-3PAPISID":
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// sapisidHash derives the Authorization header the upstream API expects:
// SAPISIDHASH <ts>_<sha1(ts + " " + sapisid + " " + origin)>.
func sapisidHash(sapisid, origin string, now time.Time) string {
	ts := fmt.Sprintf("%d", now.Unix())
	sum := sha1.Sum([]byte(ts + " " + sapisid + " " + origin))
	return fmt.Sprintf("SAPISIDHASH %s_%x", ts, sum)
}

// buildFromCookies assembles a credential set from a bare cookie string.
func buildFromCookies(cookieStr string) *Credentials {
	creds := &Credentials{
		Accept:         "*/*",
		AcceptLanguage: "en-US,en;q=0.9",
		ContentType:    "application/json",
		Cookie:         strings.TrimSpace(cookieStr),
		UserAgent:      defaultUserAgent,
		XGoogAuthUser:  "0",
		XOrigin:        musicOrigin,
	}
	if sapisid := extractSAPISID(creds.Cookie); sapisid != "" {
		creds.Authorization = sapisidHash(sapisid, musicOrigin, time.Now())
	}
	return creds
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// parseRawHeaders parses copied request headers into a credential set.
func parseRawHeaders(raw string) *Credentials {
	headers := make(map[string]string)
	var cookie string

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			cookie = value
		} else {
			headers[strings.ToLower(key)] = value
		}
	}

	authorization := headers["authorization"]
	if authorization == "" && cookie != "" {
		if sapisid := extractSAPISID(cookie); sapisid != "" {
			authorization = sapisidHash(sapisid, musicOrigin, time.Now())
		}
	}

	return &Credentials{
		Accept:         "*/*",
		AcceptLanguage: valueOr(headers["accept-language"], "en-US,en;q=0.9"),
		Authorization:  authorization,
		ContentType:    "application/json",
		Cookie:         cookie,
		UserAgent:      valueOr(headers["user-agent"], defaultUserAgent),
		XGoogAuthUser:  valueOr(headers["x-goog-authuser"], "0"),
		XOrigin:        musicOrigin,
	}
}
