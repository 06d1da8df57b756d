package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"EchoFM/core/artifact"
	"EchoFM/logger"
)

// StreamHandler handles GET /api/stream/{video_id}. The artifact cache
// collapses concurrent requests for the same track into one download and
// serves every caller from the finished file.
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["video_id"]

	handle, err := h.artifacts.Request(r.Context(), videoID)
	if err != nil {
		h.artifactError(w, videoID, err)
		return
	}
	defer handle.Close()

	f, err := handle.Open()
	if err != nil {
		logger.Error("failed to open cached artifact",
			logger.String("videoId", videoID),
			logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "failed to open audio file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", handle.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	// ServeContent takes care of Range and Content-Length.
	http.ServeContent(w, r, handle.Filename(), time.Time{}, f)
}

// StreamInfoHandler handles GET /api/stream-info/{video_id}, returning
// the direct upstream audio URL without downloading.
func (h *APIHandler) StreamInfoHandler(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["video_id"]

	info, err := h.dl.StreamInfo(r.Context(), videoID)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

// DownloadHandler handles GET /api/download/{video_id}: converts the
// track to MP3 and sends it as an attachment.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["video_id"]

	staging := filepath.Join(os.TempDir(), fmt.Sprintf("dl-%s-%s.mp3", videoID, uuid.NewString()))
	defer os.Remove(staging)

	res, err := h.dl.DownloadMP3(r.Context(), videoID, staging)
	if err != nil {
		h.artifactError(w, videoID, err)
		return
	}

	f, err := os.Open(staging)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to open converted file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	http.ServeContent(w, r, res.Filename, time.Time{}, f)
}

// DownloadInfoHandler handles GET /api/download-info/{video_id}.
func (h *APIHandler) DownloadInfoHandler(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["video_id"]

	info, err := h.dl.StreamInfo(r.Context(), videoID)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"url":         info.URL,
		"title":       info.Title,
		"contentType": info.ContentType,
	})
}

// artifactError maps the download error taxonomy to HTTP statuses.
func (h *APIHandler) artifactError(w http.ResponseWriter, videoID string, err error) {
	var fetchErr *artifact.FetchError
	var transcodeErr *artifact.TranscodeError
	var storageErr *artifact.StorageError

	switch {
	case errors.Is(err, artifact.ErrClosed):
		respondWithError(w, http.StatusServiceUnavailable, "server is shutting down")
	case errors.As(err, &transcodeErr):
		logger.Error("transcode failed",
			logger.String("videoId", videoID),
			logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "audio conversion failed")
	case errors.As(err, &storageErr):
		logger.Error("cache storage failure",
			logger.String("videoId", videoID),
			logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "storage failure")
	case errors.As(err, &fetchErr):
		logger.Warn("track fetch failed",
			logger.String("videoId", videoID),
			logger.ErrorField(err))
		respondWithError(w, http.StatusBadGateway, "failed to fetch audio")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away, nothing useful to write.
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
