package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"EchoFM/core/downloader"
	"EchoFM/logger"
	"EchoFM/storage"
)

// TrackRequest identifies one track to download.
type TrackRequest struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

// TrackError records a track that failed to download.
type TrackError struct {
	Track string `json:"track"`
	Error string `json:"error"`
}

// DownloadResult summarizes a playlist download.
type DownloadResult struct {
	Total   int          `json:"total"`
	Success int          `json:"success"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Errors  []TrackError `json:"errors"`
	Folder  string       `json:"folder"`
}

// MP3Downloader fetches a single track as MP3. Satisfied by
// downloader.YtDlp.
type MP3Downloader interface {
	DownloadMP3(ctx context.Context, videoID, destPath string) (*downloader.Result, error)
}

// Downloader saves whole playlists as MP3 folders under the data
// directory, optionally mirroring each file into object storage.
type Downloader struct {
	dataDir      string
	dl           MP3Downloader
	progress     *ProgressHub
	mirrorBucket string // empty disables mirroring

	mu     sync.Mutex
	active map[string]bool
}

// NewDownloader creates the playlist download service.
func NewDownloader(dataDir string, dl MP3Downloader, progress *ProgressHub, mirrorBucket string) *Downloader {
	return &Downloader{
		dataDir:      dataDir,
		dl:           dl,
		progress:     progress,
		mirrorBucket: mirrorBucket,
		active:       make(map[string]bool),
	}
}

var invalidFolderChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFolderName makes a playlist title safe as a directory name.
func SanitizeFolderName(name string) string {
	name = invalidFolderChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if len(name) > 100 {
		name = name[:100]
	}
	if name == "" {
		return "playlist"
	}
	return name
}

// DownloadPlaylist downloads every track into data/<playlist>/. Tracks
// already present on disk are skipped. A playlist can only be
// downloaded by one caller at a time.
func (d *Downloader) DownloadPlaylist(ctx context.Context, playlistName string, tracks []TrackRequest) (*DownloadResult, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks to download")
	}

	folder := SanitizeFolderName(playlistName)
	if !d.acquire(folder) {
		return nil, fmt.Errorf("playlist %q is already being downloaded", playlistName)
	}
	defer d.release(folder)

	dir := filepath.Join(d.dataDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create playlist directory: %w", err)
	}

	result := &DownloadResult{
		Total:  len(tracks),
		Errors: []TrackError{},
		Folder: dir,
	}

	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if d.exists(dir, track) {
			logger.Info("track already downloaded, skipping",
				logger.String("track", track.Title))
			result.Skipped++
			d.emit(playlistName, track.Title, i+1, len(tracks), "skipped", "")
			continue
		}

		d.emit(playlistName, track.Title, i+1, len(tracks), "downloading", "")
		if err := d.downloadTrack(ctx, dir, track); err != nil {
			logger.Error("track download failed",
				logger.String("track", track.Title),
				logger.ErrorField(err))
			result.Failed++
			result.Errors = append(result.Errors, TrackError{Track: track.Title, Error: err.Error()})
			d.emit(playlistName, track.Title, i+1, len(tracks), "failed", err.Error())
			continue
		}
		result.Success++
		d.emit(playlistName, track.Title, i+1, len(tracks), "done", "")
	}

	d.emit(playlistName, "", len(tracks), len(tracks), "finished", "")
	logger.Info("playlist download finished",
		logger.String("playlist", playlistName),
		logger.Int("success", result.Success),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed))
	return result, nil
}

func (d *Downloader) downloadTrack(ctx context.Context, dir string, track TrackRequest) error {
	staging := filepath.Join(dir, "."+track.VideoID+".part")
	res, err := d.dl.DownloadMP3(ctx, track.VideoID, staging)
	if err != nil {
		os.Remove(staging)
		return err
	}

	dest := uniquePath(dir, res.Filename)
	if err := os.Rename(staging, dest); err != nil {
		os.Remove(staging)
		return fmt.Errorf("move %s into playlist folder: %w", res.Filename, err)
	}

	if d.mirrorBucket != "" && storage.GetMinioClient() != nil {
		object := filepath.Base(dir) + "/" + filepath.Base(dest)
		if err := storage.MirrorFile(ctx, d.mirrorBucket, object, dest, res.ContentType); err != nil {
			// Local copy is the source of truth, the mirror is best effort.
			logger.Warn("failed to mirror track",
				logger.String("object", object),
				logger.ErrorField(err))
		}
	}
	return nil
}

// exists checks for a prior download of the track, by video ID or by
// sanitized title.
func (d *Downloader) exists(dir string, track TrackRequest) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	title := strings.ToLower(downloader.SanitizeFilename(track.Title))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if strings.Contains(name, track.VideoID) {
			return true
		}
		if title != "" && strings.Contains(strings.ToLower(name), title) && strings.HasSuffix(name, ".mp3") {
			return true
		}
	}
	return false
}

// uniquePath appends _1, _2, ... when the target name is taken.
func uniquePath(dir, filename string) string {
	dest := filepath.Join(dir, filename)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}

func (d *Downloader) emit(playlist, track string, index, total int, status, errMsg string) {
	if d.progress == nil {
		return
	}
	d.progress.Broadcast(ProgressEvent{
		Playlist: playlist,
		Track:    track,
		Index:    index,
		Total:    total,
		Status:   status,
		Error:    errMsg,
	})
}

func (d *Downloader) acquire(folder string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[folder] {
		return false
	}
	d.active[folder] = true
	return true
}

func (d *Downloader) release(folder string) {
	d.mu.Lock()
	delete(d.active, folder)
	d.mu.Unlock()
}
