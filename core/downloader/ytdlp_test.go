package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"EchoFM/core/artifact"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{`A/B\C:D*E?F"G<H>I|J`, "A_B_C_D_E_F_G_H_I_J"},
		{strings.Repeat("x", 250), strings.Repeat("x", 200)},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBestAudioFormatPrefersAudioOnly(t *testing.T) {
	formats := []mediaFormat{
		{URL: "muxed", Ext: "mp4", ACodec: "aac", VCodec: "h264", ABR: 256},
		{URL: "low", Ext: "webm", ACodec: "opus", VCodec: "none", ABR: 70},
		{URL: "high", Ext: "webm", ACodec: "opus", VCodec: "none", ABR: 160},
		{URL: "video-only", Ext: "mp4", ACodec: "none", VCodec: "h264"},
	}

	best, err := bestAudioFormat(formats)
	if err != nil {
		t.Fatalf("bestAudioFormat: %v", err)
	}
	if best.URL != "high" {
		t.Fatalf("picked %q, want the highest-bitrate audio-only format", best.URL)
	}
}

func TestBestAudioFormatFallsBackToMuxed(t *testing.T) {
	formats := []mediaFormat{
		{URL: "muxed", Ext: "mp4", ACodec: "aac", VCodec: "h264", ABR: 128},
		{URL: "video-only", Ext: "mp4", ACodec: "none", VCodec: "h264"},
	}

	best, err := bestAudioFormat(formats)
	if err != nil {
		t.Fatalf("bestAudioFormat: %v", err)
	}
	if best.URL != "muxed" {
		t.Fatalf("picked %q, want the muxed fallback", best.URL)
	}
}

func TestBestAudioFormatNoAudio(t *testing.T) {
	formats := []mediaFormat{
		{URL: "video-only", Ext: "mp4", ACodec: "none", VCodec: "h264"},
	}
	if _, err := bestAudioFormat(formats); err == nil {
		t.Fatal("expected error when no audio formats exist")
	}
}

func TestClassifyRunError(t *testing.T) {
	base := errors.New("exit status 1")

	err := classifyRunError("vid", base, "ERROR: Postprocessing: audio conversion failed")
	var te *artifact.TranscodeError
	if !errors.As(err, &te) {
		t.Fatalf("postprocessing failure classified as %T, want TranscodeError", err)
	}

	err = classifyRunError("vid", base, "ERROR: [youtube] vid: Video unavailable")
	var fe *artifact.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("remote failure classified as %T, want FetchError", err)
	}
}

func TestContentTypeForExt(t *testing.T) {
	if got := contentTypeForExt("m4a"); got != "audio/mp4" {
		t.Errorf("m4a content type = %q", got)
	}
	if got := contentTypeForExt("unknown"); got != "audio/webm" {
		t.Errorf("fallback content type = %q", got)
	}
}

func TestFindAudioFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"abc.info.json", "abc.webm", "abc.webm.part"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	path, ext, err := findAudioFile(dir, "abc")
	if err != nil {
		t.Fatalf("findAudioFile: %v", err)
	}
	if filepath.Base(path) != "abc.webm" || ext != "webm" {
		t.Fatalf("found %q (ext %q), want abc.webm", path, ext)
	}

	if _, _, err := findAudioFile(dir, "missing"); err == nil {
		t.Fatal("expected error for unknown video id")
	}
}
