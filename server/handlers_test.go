package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"EchoFM/config"
	"EchoFM/core/artifact"
	"EchoFM/core/auth"
	"EchoFM/core/downloader"
	"EchoFM/core/library"
	"EchoFM/model"
)

type fetchFunc func(ctx context.Context, id, destPath string) (*artifact.FetchResult, error)

func (f fetchFunc) Fetch(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
	return f(ctx, id, destPath)
}

func newTestArtifacts(t *testing.T, fetcher artifact.Fetcher) *artifact.Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := artifact.NewManager(artifact.Config{
		Dir:                  filepath.Join(dir, "_cache"),
		SettingsPath:         filepath.Join(dir, "_cache_settings.json"),
		CapacityBytes:        1 << 20,
		FetchTimeout:         time.Minute,
		DefaultRetentionDays: 10,
		Fetcher:              fetcher,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newTestRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	registerRoutes(router, h)
	return router
}

func TestStreamHandlerServesCachedAudio(t *testing.T) {
	payload := []byte("fake audio payload")
	artifacts := newTestArtifacts(t, fetchFunc(func(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
		if err := os.WriteFile(destPath, payload, 0644); err != nil {
			return nil, err
		}
		return &artifact.FetchResult{Filename: "Song.webm", ContentType: "audio/webm"}, nil
	}))

	h := &APIHandler{artifacts: artifacts}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/vid1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/webm" {
		t.Fatalf("content type = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("accept-ranges = %q", got)
	}
}

func TestStreamHandlerSupportsRangeRequests(t *testing.T) {
	payload := []byte("0123456789")
	artifacts := newTestArtifacts(t, fetchFunc(func(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
		os.WriteFile(destPath, payload, 0644)
		return &artifact.FetchResult{Filename: "x.mp3", ContentType: "audio/mpeg"}, nil
	}))

	h := &APIHandler{artifacts: artifacts}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/vid1", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "2345" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestStreamHandlerMapsFetchErrors(t *testing.T) {
	artifacts := newTestArtifacts(t, fetchFunc(func(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
		return nil, fmt.Errorf("video unavailable")
	}))

	h := &APIHandler{artifacts: artifacts}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/gone", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestCacheStatsAndSettingsRoundtrip(t *testing.T) {
	artifacts := newTestArtifacts(t, fetchFunc(func(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
		os.WriteFile(destPath, []byte("data"), 0644)
		return &artifact.FetchResult{Filename: "x.mp3", ContentType: "audio/mpeg"}, nil
	}))

	h := &APIHandler{artifacts: artifacts}
	router := newTestRouter(h)

	// Populate one entry.
	req := httptest.NewRequest(http.MethodGet, "/api/stream/vid1", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats["fileCount"].(float64) != 1 {
		t.Fatalf("fileCount = %v", stats["fileCount"])
	}
	if stats["totalSizeFormatted"] == "" {
		t.Fatal("missing human readable size")
	}

	// Update settings with an out-of-range retention, expect clamping.
	body := strings.NewReader(`{"retention_days": 9999, "enabled": true}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/settings", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d", rec.Code)
	}
	var resp struct {
		Settings artifact.Settings `json:"settings"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Settings.RetentionDays != 365 {
		t.Fatalf("retention = %d, want clamp to 365", resp.Settings.RetentionDays)
	}

	// Clear empties the cache.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cache/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats["fileCount"].(float64) != 0 {
		t.Fatalf("fileCount after clear = %v", stats["fileCount"])
	}
}

func newLocalTestHandler(t *testing.T) (*APIHandler, string) {
	t.Helper()
	dataDir := t.TempDir()
	cfg := &config.Config{DataDir: dataDir}
	return &APIHandler{cfg: cfg}, dataDir
}

func TestLocalPlaylistsListsFolders(t *testing.T) {
	h, dataDir := newLocalTestHandler(t)
	router := newTestRouter(h)

	os.MkdirAll(filepath.Join(dataDir, "Road Trip"), 0755)
	os.WriteFile(filepath.Join(dataDir, "Road Trip", "a.mp3"), []byte("aaaa"), 0644)
	os.WriteFile(filepath.Join(dataDir, "Road Trip", "notes.txt"), []byte("x"), 0644)
	// Internal folders are not playlists.
	os.MkdirAll(filepath.Join(dataDir, "_cache"), 0755)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/local/playlists", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Playlists []map[string]interface{} `json:"playlists"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Playlists) != 1 {
		t.Fatalf("playlists = %+v", resp.Playlists)
	}
	p := resp.Playlists[0]
	if p["name"] != "Road Trip" || p["trackCount"].(float64) != 1 {
		t.Fatalf("playlist = %+v", p)
	}
}

func TestLocalHandlersRejectPathTraversal(t *testing.T) {
	h, _ := newLocalTestHandler(t)

	if _, err := h.localPath("..", "secret"); err == nil {
		t.Fatal("expected error for ..")
	}
	if _, err := h.localPath(".hidden"); err == nil {
		t.Fatal("expected error for dotfile")
	}
	if _, err := h.localPath("ok", "../../etc/passwd"); err == nil {
		t.Fatal("expected error for nested traversal")
	}
	if _, err := h.localPath("Road Trip", "song.mp3"); err != nil {
		t.Fatalf("valid path rejected: %v", err)
	}
}

func TestLocalDownloadZipStreamsArchive(t *testing.T) {
	h, dataDir := newLocalTestHandler(t)
	router := newTestRouter(h)

	dir := filepath.Join(dataDir, "Mix")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("aaaa"), 0644)
	os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("bbbb"), 0644)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/local/download-zip/Mix", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("content type = %q", got)
	}
	// ZIP magic.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatal("response is not a zip archive")
	}
}

func TestLocalDeleteFile(t *testing.T) {
	h, dataDir := newLocalTestHandler(t)
	router := newTestRouter(h)

	dir := filepath.Join(dataDir, "Mix")
	os.MkdirAll(dir, 0755)
	path := filepath.Join(dir, "a.mp3")
	os.WriteFile(path, []byte("aaaa"), 0644)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/local/playlist/Mix/a.mp3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file still exists")
	}
}

type fakeUserRepo struct {
	users  map[string]*model.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (r *fakeUserRepo) CreateUser(user *model.User) (uint, error) {
	user.ID = r.nextID
	r.nextID++
	r.users[user.Username] = user
	return user.ID, nil
}

func (r *fakeUserRepo) GetUserByID(id uint) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetUserByUsername(username string) (*model.User, error) {
	return r.users[username], nil
}

func (r *fakeUserRepo) GetUserByEmail(email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func TestRegisterAndLoginFlow(t *testing.T) {
	auth.SetJWTSecret("test-secret")
	h := &APIHandler{userRepo: newFakeUserRepo()}
	router := newTestRouter(h)

	body := strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/register", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	var reg struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &reg)
	if reg.Token == "" || reg.User.Username != "alice" {
		t.Fatalf("register response = %+v", reg)
	}

	// Duplicate username.
	body = strings.NewReader(`{"username":"alice","email":"other@example.com","password":"secret1"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/register", body))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	// Login with the username.
	body = strings.NewReader(`{"username":"alice","password":"secret1"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/login", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	// Login with the email.
	body = strings.NewReader(`{"username":"alice@example.com","password":"secret1"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/login", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("email login status = %d", rec.Code)
	}

	// Wrong password.
	body = strings.NewReader(`{"username":"alice","password":"wrong"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/user/login", body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth.SetJWTSecret("test-secret")
	h := &APIHandler{}

	var gotUserID uint
	protected := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// No header.
	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header status = %d", rec.Code)
	}

	// Malformed header.
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bogus")
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed header status = %d", rec.Code)
	}

	// Valid token.
	token, err := auth.GenerateToken(7, "bob")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", rec.Code)
	}
	if gotUserID != 7 {
		t.Fatalf("userID from context = %d", gotUserID)
	}
}

func TestAuthRequiredGuardsAdminRoutes(t *testing.T) {
	auth.SetJWTSecret("test-secret")
	artifacts := newTestArtifacts(t, fetchFunc(func(ctx context.Context, id, destPath string) (*artifact.FetchResult, error) {
		return nil, fmt.Errorf("unused")
	}))
	h := &APIHandler{cfg: &config.Config{AuthRequired: true}, artifacts: artifacts}
	router := newTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	token, err := auth.GenerateToken(1, "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
}

func TestRootBannerListsEndpoints(t *testing.T) {
	h := &APIHandler{}
	router := newTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var banner struct {
		Service   string            `json:"service"`
		Endpoints map[string]string `json:"endpoints"`
	}
	json.Unmarshal(rec.Body.Bytes(), &banner)
	if banner.Service != "EchoFM" || len(banner.Endpoints) == 0 {
		t.Fatalf("banner = %+v", banner)
	}
}

func TestCheckAuthConfig(t *testing.T) {
	if err := checkAuthConfig(&config.Config{AuthRequired: true}); err == nil {
		t.Fatal("expected an error with an empty secret")
	}
	if err := checkAuthConfig(&config.Config{AuthRequired: true, JWTSecret: "s"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := checkAuthConfig(&config.Config{}); err != nil {
		t.Fatalf("open mode must not require a secret: %v", err)
	}
}

type recordedMP3Downloader struct{}

func (recordedMP3Downloader) DownloadMP3(ctx context.Context, videoID, destPath string) (*downloader.Result, error) {
	if err := os.WriteFile(destPath, []byte("mp3 "+videoID), 0644); err != nil {
		return nil, err
	}
	return &downloader.Result{Path: destPath, Filename: videoID + ".mp3", Title: videoID, Ext: "mp3", ContentType: "audio/mpeg"}, nil
}

func TestDownloadPlaylistEndpointReturnsSummary(t *testing.T) {
	dataDir := t.TempDir()
	dl := library.NewDownloader(dataDir, recordedMP3Downloader{}, library.NewProgressHub(), "")
	h := &APIHandler{cfg: &config.Config{DataDir: dataDir}, library: dl}
	router := newTestRouter(h)

	body := strings.NewReader(`{"playlist_name":"Mix","tracks":[{"videoId":"vid1","title":"Song One"}]}`)
	rec := httptest.NewRecorder()
	// ResponseRecorder cannot carry a write deadline; the handler must
	// shrug that off and still finish the download.
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/library/download-playlist", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Details struct {
			Success int `json:"success"`
		} `json:"details"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Details.Success != 1 {
		t.Fatalf("summary = %s", rec.Body.String())
	}
	entries, err := os.ReadDir(filepath.Join(dataDir, "Mix"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("downloaded folder: %v entries, err %v", len(entries), err)
	}
}

func TestUpstreamAuthStatusAndLogin(t *testing.T) {
	creds := auth.NewCredentialStore(filepath.Join(t.TempDir(), "browser.json"))
	h := &APIHandler{creds: creds}
	router := newTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	var status struct {
		Authenticated bool `json:"authenticated"`
	}
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Authenticated {
		t.Fatal("fresh store reported as authenticated")
	}

	// Too-short input is rejected.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"headers_raw":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short input status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"headers_raw":"SAPISID=abc; HSID=def; SSID=xyz"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	json.Unmarshal(rec.Body.Bytes(), &status)
	if !status.Authenticated {
		t.Fatal("store not authenticated after login")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Authenticated {
		t.Fatal("still authenticated after logout")
	}
}
