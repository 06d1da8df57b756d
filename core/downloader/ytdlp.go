package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"EchoFM/core/artifact"
	"EchoFM/logger"
)

const watchURL = "https://www.youtube.com/watch?v=%s"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// YtDlp drives the yt-dlp executable for audio extraction and the optional
// ffmpeg MP3 conversion.
type YtDlp struct {
	ytdlpPath  string
	ffmpegPath string
	mp3Bitrate string
}

// NewYtDlp creates a new yt-dlp wrapper.
func NewYtDlp(ytdlpPath, ffmpegPath, mp3Bitrate string) *YtDlp {
	return &YtDlp{
		ytdlpPath:  ytdlpPath,
		ffmpegPath: ffmpegPath,
		mp3Bitrate: mp3Bitrate,
	}
}

// StreamInfo describes the best direct audio stream of a video.
type StreamInfo struct {
	URL         string  `json:"url"`
	ContentType string  `json:"contentType"`
	Duration    float64 `json:"duration"`
	Title       string  `json:"title"`
}

// Result describes a finished download.
type Result struct {
	Path        string
	Filename    string // sanitized title-based filename
	Title       string
	Ext         string
	ContentType string
}

// mediaFormat is the slice of the yt-dlp info dict the stream picker needs.
type mediaFormat struct {
	URL    string  `json:"url"`
	Ext    string  `json:"ext"`
	ACodec string  `json:"acodec"`
	VCodec string  `json:"vcodec"`
	ABR    float64 `json:"abr"`
}

type infoDict struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Ext      string        `json:"ext"`
	Duration float64       `json:"duration"`
	Formats  []mediaFormat `json:"formats"`
}

var contentTypes = map[string]string{
	"webm": "audio/webm",
	"m4a":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"opus": "audio/opus",
	"ogg":  "audio/ogg",
}

func contentTypeForExt(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "audio/webm"
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename strips characters that are unsafe in filenames and
// clamps the result to 200 characters.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// StreamInfo extracts the best direct audio URL without downloading.
func (d *YtDlp) StreamInfo(ctx context.Context, videoID string) (*StreamInfo, error) {
	args := []string{
		"-J",
		"--no-warnings",
		"--extractor-args", "youtube:player_client=android,web",
		fmt.Sprintf(watchURL, videoID),
	}

	cmd := exec.CommandContext(ctx, d.ytdlpPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &artifact.FetchError{ID: videoID,
			Err: fmt.Errorf("yt-dlp extraction failed: %w\n%s", err, stderr.String())}
	}

	var info infoDict
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, &artifact.FetchError{ID: videoID,
			Err: fmt.Errorf("parse yt-dlp output: %w", err)}
	}

	best, err := bestAudioFormat(info.Formats)
	if err != nil {
		return nil, &artifact.FetchError{ID: videoID, Err: err}
	}

	return &StreamInfo{
		URL:         best.URL,
		ContentType: contentTypeForExt(best.Ext),
		Duration:    info.Duration,
		Title:       info.Title,
	}, nil
}

// bestAudioFormat picks the highest-bitrate audio format, preferring
// audio-only streams over muxed ones.
func bestAudioFormat(formats []mediaFormat) (*mediaFormat, error) {
	var audio []mediaFormat
	for _, f := range formats {
		if f.ACodec != "" && f.ACodec != "none" && f.URL != "" {
			audio = append(audio, f)
		}
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio format found")
	}

	var audioOnly []mediaFormat
	for _, f := range audio {
		if f.VCodec == "" || f.VCodec == "none" {
			audioOnly = append(audioOnly, f)
		}
	}
	if len(audioOnly) > 0 {
		audio = audioOnly
	}

	sort.SliceStable(audio, func(i, j int) bool {
		return audio[i].ABR > audio[j].ABR
	})
	return &audio[0], nil
}

// Download fetches the best audio of a video to destPath without
// re-encoding. The caller owns destPath.
func (d *YtDlp) Download(ctx context.Context, videoID, destPath string) (*Result, error) {
	return d.run(ctx, videoID, destPath, false)
}

// DownloadMP3 fetches the audio and converts it to MP3 via ffmpeg.
func (d *YtDlp) DownloadMP3(ctx context.Context, videoID, destPath string) (*Result, error) {
	return d.run(ctx, videoID, destPath, true)
}

func (d *YtDlp) run(ctx context.Context, videoID, destPath string, asMP3 bool) (*Result, error) {
	// Download into a scratch directory on the same filesystem as destPath
	// so the final rename is atomic.
	tempDir, err := os.MkdirTemp(filepath.Dir(destPath), "dl-*")
	if err != nil {
		return nil, &artifact.StorageError{ID: videoID,
			Err: fmt.Errorf("create download directory: %w", err)}
	}
	defer os.RemoveAll(tempDir)

	args := []string{
		"-f", "bestaudio/best",
		"--no-warnings",
		"--no-progress",
		"--no-playlist",
		"--extractor-args", "youtube:player_client=android,web",
		"--user-agent", browserUserAgent,
		"--write-info-json",
		"-o", filepath.Join(tempDir, "%(id)s.%(ext)s"),
	}
	if asMP3 {
		args = append(args,
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", strings.TrimSuffix(d.mp3Bitrate, "k")+"K",
			"--ffmpeg-location", d.ffmpegPath,
		)
	}
	args = append(args, fmt.Sprintf(watchURL, videoID))

	cmd := exec.CommandContext(ctx, d.ytdlpPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("executing yt-dlp",
		logger.String("videoId", videoID),
		logger.Bool("mp3", asMP3))

	if err := cmd.Run(); err != nil {
		return nil, classifyRunError(videoID, err, stderr.String())
	}

	info, err := readInfoJSON(tempDir, videoID)
	if err != nil {
		return nil, &artifact.FetchError{ID: videoID, Err: err}
	}

	audioPath, ext, err := findAudioFile(tempDir, videoID)
	if err != nil {
		return nil, &artifact.FetchError{ID: videoID, Err: err}
	}

	if err := os.Rename(audioPath, destPath); err != nil {
		return nil, &artifact.StorageError{ID: videoID,
			Err: fmt.Errorf("move downloaded audio: %w", err)}
	}

	title := info.Title
	if title == "" {
		title = videoID
	}
	return &Result{
		Path:        destPath,
		Filename:    SanitizeFilename(title) + "." + ext,
		Title:       title,
		Ext:         ext,
		ContentType: contentTypeForExt(ext),
	}, nil
}

// classifyRunError splits yt-dlp failures into the artifact error taxonomy:
// postprocessing problems are local conversion failures, everything else is
// a remote fetch failure.
func classifyRunError(videoID string, err error, stderr string) error {
	wrapped := fmt.Errorf("yt-dlp failed: %w\n%s", err, stderr)
	if strings.Contains(stderr, "Postprocessing") || strings.Contains(stderr, "ffmpeg") {
		return &artifact.TranscodeError{ID: videoID, Err: wrapped}
	}
	return &artifact.FetchError{ID: videoID, Err: wrapped}
}

func readInfoJSON(dir, videoID string) (*infoDict, error) {
	data, err := os.ReadFile(filepath.Join(dir, videoID+".info.json"))
	if err != nil {
		return nil, fmt.Errorf("read info json: %w", err)
	}
	var info infoDict
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse info json: %w", err)
	}
	return &info, nil
}

// findAudioFile locates the downloaded audio in the scratch directory.
func findAudioFile(dir, videoID string) (path, ext string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("scan download directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, ".info.json") || strings.HasSuffix(name, ".part") {
			continue
		}
		if strings.HasPrefix(name, videoID+".") {
			return filepath.Join(dir, name), strings.TrimPrefix(filepath.Ext(name), "."), nil
		}
	}
	return "", "", fmt.Errorf("downloaded audio file not found")
}
