package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"EchoFM/logger"
)

// FetchResult describes the artifact a Fetcher produced at the destination
// path chosen by the manager.
type FetchResult struct {
	Filename    string // client-facing filename, e.g. "Artist - Title.webm"
	ContentType string
}

// Fetcher downloads and transcodes one track to destPath. Implementations
// report failures through the FetchError/TranscodeError/StorageError types
// so the manager can surface them unchanged.
type Fetcher interface {
	Fetch(ctx context.Context, id, destPath string) (*FetchResult, error)
}

// Config carries the construction parameters of a Manager.
type Config struct {
	Dir                  string // managed cache directory, owned exclusively by the manager
	SettingsPath         string // JSON sidecar for runtime settings
	CapacityBytes        int64
	FetchTimeout         time.Duration // upper bound for one fetch, orphaned fetches included
	EvictionInterval     time.Duration
	DefaultRetentionDays int
	Fetcher              Fetcher
}

// Manager maps track identifiers to locally cached, transcoded audio files.
// Concurrent requests for one identifier collapse into a single fetch;
// eviction is LRU by last access and never touches files a reader still
// holds open.
type Manager struct {
	dir              string
	settingsPath     string
	capacity         int64
	fetchTimeout     time.Duration
	evictionInterval time.Duration
	fetcher          Fetcher

	mu       sync.Mutex
	entries  map[string]*entry
	usage    int64 // total bytes of Ready entries
	seq      uint64
	settings Settings
	closed   bool

	stop    chan struct{}
	janitor sync.WaitGroup
	fetches sync.WaitGroup
}

// Stats is a point-in-time summary of the cache contents.
type Stats struct {
	FileCount int   `json:"fileCount"`
	TotalSize int64 `json:"totalSize"`
	Pending   int   `json:"pending"`
}

// CleanupResult summarizes one retention sweep.
type CleanupResult struct {
	Deleted    int   `json:"deleted"`
	Kept       int   `json:"kept"`
	FreedBytes int64 `json:"freedBytes"`
}

// NewManager creates the cache manager, loads entries already on disk into
// the table and starts the eviction janitor.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("artifact: fetcher is required")
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, "tmp"), 0755); err != nil {
		return nil, &StorageError{Err: fmt.Errorf("create cache directory: %w", err)}
	}

	m := &Manager{
		dir:              cfg.Dir,
		settingsPath:     cfg.SettingsPath,
		capacity:         cfg.CapacityBytes,
		fetchTimeout:     cfg.FetchTimeout,
		evictionInterval: cfg.EvictionInterval,
		fetcher:          cfg.Fetcher,
		entries:          make(map[string]*entry),
		stop:             make(chan struct{}),
	}
	if m.fetchTimeout <= 0 {
		m.fetchTimeout = 5 * time.Minute
	}
	m.settings = loadSettings(cfg.SettingsPath, Settings{
		RetentionDays: cfg.DefaultRetentionDays,
		Enabled:       true,
	})

	if err := m.loadExisting(); err != nil {
		return nil, err
	}

	if m.evictionInterval > 0 {
		m.janitor.Add(1)
		go m.janitorLoop()
	}

	return m, nil
}

// loadExisting scans the managed directory and registers every artifact
// file as a Ready entry, using its mtime as the last access time.
func (m *Manager) loadExisting() error {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return &StorageError{Err: fmt.Errorf("scan cache directory: %w", err)}
	}

	// Leftover partial downloads from a previous run are garbage.
	if stale, err := os.ReadDir(filepath.Join(m.dir, "tmp")); err == nil {
		for _, de := range stale {
			os.Remove(filepath.Join(m.dir, "tmp", de.Name()))
		}
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if id == "" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(m.dir, name)
		if prev, ok := m.entries[id]; ok {
			// One file per identifier; keep the newer one.
			if info.ModTime().After(prev.lastAccess) {
				os.Remove(prev.path)
				m.usage -= prev.size
				delete(m.entries, id)
			} else {
				os.Remove(path)
				continue
			}
		}
		m.seq++
		e := &entry{
			id:          id,
			path:        path,
			size:        info.Size(),
			contentType: contentTypeByExt(path),
			filename:    name,
			createdAt:   info.ModTime(),
			lastAccess:  info.ModTime(),
			status:      StatusReady,
			seq:         m.seq,
		}
		m.entries[id] = e
		m.usage += info.Size()
	}

	logger.Info("artifact cache loaded",
		logger.String("dir", m.dir),
		logger.Int("entries", len(m.entries)),
		logger.Int64("usageBytes", m.usage))
	return nil
}

// Request returns a handle for the artifact of id, fetching it if needed.
// Concurrent callers for the same id share a single fetch; a caller whose
// ctx ends while waiting detaches without affecting the fetch.
func (m *Manager) Request(ctx context.Context, id string) (*Handle, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}

		e, ok := m.entries[id]
		if !ok {
			e = m.startFetchLocked(id)
		}

		switch e.status {
		case StatusReady:
			if !m.settings.Enabled {
				// Cache disabled: never serve stored artifacts.
				m.removeLocked(e, true)
				m.mu.Unlock()
				continue
			}
			if _, err := os.Stat(e.path); err != nil {
				// Backing file vanished out from under us; refetch.
				m.removeLocked(e, false)
				m.mu.Unlock()
				continue
			}
			h := m.acquireLocked(e)
			m.mu.Unlock()
			return h, nil
		case StatusFailed:
			// Failed entries are never terminal; replace and retry.
			delete(m.entries, id)
			m.mu.Unlock()
			continue
		}

		// Pending: join the waiter set.
		e.waiters++
		ready := e.ready
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.mu.Lock()
			e.waiters--
			m.maybeUnlinkLocked(e)
			m.mu.Unlock()
			return nil, ctx.Err()
		case <-ready:
		}

		m.mu.Lock()
		e.waiters--
		if e.status == StatusReady {
			h := m.acquireLocked(e)
			m.mu.Unlock()
			return h, nil
		}
		err := e.err
		m.maybeUnlinkLocked(e)
		m.mu.Unlock()
		return nil, err
	}
}

// startFetchLocked registers a Pending entry and launches its fetch.
func (m *Manager) startFetchLocked(id string) *entry {
	m.seq++
	e := &entry{
		id:        id,
		createdAt: time.Now(),
		status:    StatusPending,
		ready:     make(chan struct{}),
		seq:       m.seq,
	}
	m.entries[id] = e
	m.fetches.Add(1)
	go m.fetch(e)
	return e
}

// acquireLocked bumps last access and takes a reader reference.
func (m *Manager) acquireLocked(e *entry) *Handle {
	e.lastAccess = time.Now()
	e.refs++
	return &Handle{
		m:           m,
		e:           e,
		path:        e.path,
		size:        e.size,
		contentType: e.contentType,
		filename:    e.filename,
	}
}

// fetch runs one download+transcode. It deliberately does not inherit a
// caller context: once started, a fetch runs to completion (bounded by the
// fetch timeout) even when every waiter has disconnected, so the cache
// still gets populated.
func (m *Manager) fetch(e *entry) {
	defer m.fetches.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
	defer cancel()

	dest := filepath.Join(m.dir, "tmp", fmt.Sprintf("%s-%s.part", e.id, uuid.NewString()))
	res, err := m.fetcher.Fetch(ctx, e.id, dest)
	if err != nil {
		os.Remove(dest)
		m.resolveFailure(e, classify(e.id, err))
		return
	}

	info, err := os.Stat(dest)
	if err != nil {
		m.resolveFailure(e, &StorageError{ID: e.id, Err: fmt.Errorf("stat artifact: %w", err)})
		return
	}
	if info.Size() == 0 {
		os.Remove(dest)
		m.resolveFailure(e, &FetchError{ID: e.id, Err: fmt.Errorf("fetched artifact is empty")})
		return
	}
	if err := syncFile(dest); err != nil {
		os.Remove(dest)
		m.resolveFailure(e, &StorageError{ID: e.id, Err: fmt.Errorf("sync artifact: %w", err)})
		return
	}

	m.publish(e, dest, res, info.Size())
}

// publish promotes a Pending entry to Ready. The artifact only enters the
// managed namespace via rename after it is fully written, so readers can
// never observe a partial file.
func (m *Manager) publish(e *entry, tmpPath string, res *FetchResult, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.entries[e.id] == e

	e.size = size
	e.contentType = res.ContentType
	e.filename = res.Filename
	e.lastAccess = time.Now()

	if current && m.settings.Enabled && !m.closed {
		final := filepath.Join(m.dir, e.id+extByContentType(res.ContentType))
		if err := os.Rename(tmpPath, final); err != nil {
			os.Remove(tmpPath)
			e.status = StatusFailed
			e.err = &StorageError{ID: e.id, Err: fmt.Errorf("rename artifact: %w", err)}
			delete(m.entries, e.id)
			close(e.ready)
			return
		}
		e.path = final
		e.status = StatusReady
		m.usage += size
		close(e.ready)

		logger.Info("artifact cached",
			logger.String("id", e.id),
			logger.Int64("size", size),
			logger.String("contentType", res.ContentType))

		m.evictLocked()
		return
	}

	// The entry was invalidated mid-fetch, the cache is disabled, or the
	// manager is closing. Serve remaining waiters straight from the staging
	// file and unlink it once they are done.
	e.path = tmpPath
	e.status = StatusReady
	e.condemned = true
	if current {
		delete(m.entries, e.id)
	}
	close(e.ready)
	m.maybeUnlinkLocked(e)
}

// resolveFailure fails every collapsed waiter with reason and drops the
// entry so the next request retries.
func (m *Manager) resolveFailure(e *entry, reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.status = StatusFailed
	e.err = reason
	if m.entries[e.id] == e {
		delete(m.entries, e.id)
	}
	close(e.ready)

	logger.Warn("artifact fetch failed",
		logger.String("id", e.id),
		logger.ErrorField(reason))
}

// release drops a reader reference.
func (m *Manager) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	m.maybeUnlinkLocked(e)
}

// maybeUnlinkLocked removes a condemned file once nobody can read it.
func (m *Manager) maybeUnlinkLocked(e *entry) {
	if !e.condemned || e.refs > 0 || e.waiters > 0 || e.path == "" {
		return
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to unlink condemned artifact",
			logger.String("path", e.path),
			logger.ErrorField(err))
	}
	e.condemned = false
}

// removeLocked takes an entry out of the table. Ready files are unlinked
// immediately unless a reader still holds them, in which case the unlink
// happens on last release.
func (m *Manager) removeLocked(e *entry, unlink bool) {
	if m.entries[e.id] != e {
		return
	}
	delete(m.entries, e.id)
	if e.status != StatusReady {
		return
	}
	m.usage -= e.size
	if !unlink {
		return
	}
	if e.refs > 0 || e.waiters > 0 {
		e.condemned = true
		return
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to unlink evicted artifact",
			logger.String("path", e.path),
			logger.ErrorField(err))
	}
}

// Invalidate forces removal of an entry regardless of recency. A Pending
// entry is detached: its fetch still resolves for the waiters already
// collapsed onto it, but the result never enters the cache.
func (m *Manager) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return
	}
	if e.status == StatusPending {
		delete(m.entries, id)
		return
	}
	m.removeLocked(e, true)
}

// Evict applies the LRU policy until usage fits the configured capacity.
// It never evicts Pending entries.
func (m *Manager) Evict() (evicted int, freed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictLocked()
}

func (m *Manager) evictLocked() (evicted int, freed int64) {
	if m.capacity <= 0 || m.usage <= m.capacity {
		return 0, 0
	}

	candidates := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.status == StatusReady {
			candidates = append(candidates, e)
		}
	}
	// Least recently accessed first, creation order breaking ties.
	sort.Slice(candidates, func(i, j int) bool {
		return lessLRU(candidates[i], candidates[j])
	})

	for _, e := range candidates {
		if m.usage <= m.capacity {
			break
		}
		size := e.size
		m.removeLocked(e, true)
		evicted++
		freed += size
	}

	if evicted > 0 {
		logger.Info("artifact cache evicted",
			logger.Int("entries", evicted),
			logger.Int64("freedBytes", freed),
			logger.Int64("usageBytes", m.usage))
	}
	return evicted, freed
}

func lessLRU(a, b *entry) bool {
	if a.lastAccess.Equal(b.lastAccess) {
		return a.seq < b.seq
	}
	return a.lastAccess.Before(b.lastAccess)
}

// Cleanup removes Ready entries older than the retention window.
func (m *Manager) Cleanup() CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -m.settings.RetentionDays)
	var res CleanupResult
	for _, e := range m.entries {
		if e.status != StatusReady {
			continue
		}
		if e.lastAccess.After(cutoff) {
			res.Kept++
			continue
		}
		size := e.size
		m.removeLocked(e, true)
		res.Deleted++
		res.FreedBytes += size
	}
	return res
}

// Clear removes every Ready entry. Pending entries are left to resolve.
func (m *Manager) Clear() (deleted int, freed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.status != StatusReady {
			continue
		}
		size := e.size
		m.removeLocked(e, true)
		deleted++
		freed += size
	}
	return deleted, freed
}

// GetStats reports cache occupancy.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{TotalSize: m.usage}
	for _, e := range m.entries {
		switch e.status {
		case StatusReady:
			s.FileCount++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// GetSettings returns the current runtime settings.
func (m *Manager) GetSettings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// UpdateSettings normalizes, applies and persists new settings.
func (m *Manager) UpdateSettings(s Settings) (Settings, error) {
	s = s.normalize()
	if err := saveSettings(m.settingsPath, s); err != nil {
		return Settings{}, &StorageError{Err: fmt.Errorf("save cache settings: %w", err)}
	}
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return s, nil
}

// janitorLoop periodically applies retention expiry and capacity eviction.
func (m *Manager) janitorLoop() {
	defer m.janitor.Done()

	ticker := time.NewTicker(m.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			res := m.Cleanup()
			if res.Deleted > 0 {
				logger.Info("artifact cache retention sweep",
					logger.Int("deleted", res.Deleted),
					logger.Int64("freedBytes", res.FreedBytes))
			}
			m.Evict()
		}
	}
}

// Close stops the janitor and waits for in-flight fetches to resolve.
// Ready entries persist on disk for the next start.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	m.janitor.Wait()
	m.fetches.Wait()
}

// syncFile flushes a finished artifact to stable storage before it is
// renamed into the managed namespace.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
