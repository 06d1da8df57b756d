package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"

	"EchoFM/core/artifact"
)

// CacheSettingsHandler handles GET /api/cache/settings.
func (h *APIHandler) CacheSettingsHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.artifacts.GetSettings())
}

// UpdateCacheSettingsHandler handles POST /api/cache/settings.
func (h *APIHandler) UpdateCacheSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req artifact.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := h.artifacts.UpdateSettings(req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"settings": settings,
	})
}

// CacheStatsHandler handles GET /api/cache/stats.
func (h *APIHandler) CacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := h.artifacts.GetStats()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"fileCount":          stats.FileCount,
		"totalSize":          stats.TotalSize,
		"totalSizeFormatted": humanize.Bytes(uint64(stats.TotalSize)),
		"pending":            stats.Pending,
		"settings":           h.artifacts.GetSettings(),
	})
}

// CacheCleanupHandler handles POST /api/cache/cleanup, sweeping entries
// past their retention.
func (h *APIHandler) CacheCleanupHandler(w http.ResponseWriter, r *http.Request) {
	result := h.artifacts.Cleanup()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Cleanup finished: %d files removed", result.Deleted),
		"deleted":        result.Deleted,
		"kept":           result.Kept,
		"freedBytes":     result.FreedBytes,
		"freedFormatted": humanize.Bytes(uint64(result.FreedBytes)),
	})
}

// CacheClearHandler handles DELETE /api/cache/clear.
func (h *APIHandler) CacheClearHandler(w http.ResponseWriter, r *http.Request) {
	deleted, freed := h.artifacts.Clear()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Cache cleared: %d files removed", deleted),
		"deleted":        deleted,
		"freedBytes":     freed,
		"freedFormatted": humanize.Bytes(uint64(freed)),
	})
}
