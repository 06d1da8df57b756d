package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"EchoFM/core/library"
	"EchoFM/logger"
)

// CreatePlaylistRequest is the body of POST /api/library/playlist.
type CreatePlaylistRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Privacy     string `json:"privacy"` // PRIVATE, PUBLIC, UNLISTED
}

// AddSongRequest is the body of POST /api/library/playlist/{id}/add.
type AddSongRequest struct {
	VideoID string `json:"videoId"`
}

// RemoveSongRequest is the body of POST /api/library/playlist/{id}/remove.
type RemoveSongRequest struct {
	VideoID    string `json:"videoId"`
	SetVideoID string `json:"setVideoId"`
}

// DownloadPlaylistRequest is the body of POST /api/library/download-playlist.
type DownloadPlaylistRequest struct {
	PlaylistName string                 `json:"playlist_name"`
	Tracks       []library.TrackRequest `json:"tracks"`
}

// LibraryPlaylistsHandler handles GET /api/library/playlists.
func (h *APIHandler) LibraryPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.yt.GetLibraryPlaylists(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"playlists": playlists})
}

// LikedSongsHandler handles GET /api/library/liked-songs.
func (h *APIHandler) LikedSongsHandler(w http.ResponseWriter, r *http.Request) {
	liked, err := h.yt.GetLikedSongs(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, liked)
}

// LibraryPlaylistHandler handles GET /api/library/playlist/{playlist_id}.
func (h *APIHandler) LibraryPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playlist_id"]

	playlist, err := h.yt.GetPlaylist(r.Context(), playlistID)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, playlist)
}

// CreatePlaylistHandler handles POST /api/library/playlist.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondWithError(w, http.StatusBadRequest, "Playlist title is required")
		return
	}

	playlistID, err := h.yt.CreatePlaylist(r.Context(), strings.TrimSpace(req.Title), req.Description, req.Privacy)
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Playlist %q created", req.Title),
		"playlist": map[string]interface{}{
			"playlistId":  playlistID,
			"title":       req.Title,
			"description": req.Description,
			"privacy":     req.Privacy,
		},
	})
}

// AddToPlaylistHandler handles POST /api/library/playlist/{playlist_id}/add.
func (h *APIHandler) AddToPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playlist_id"]

	var req AddSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VideoID == "" {
		respondWithError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	if err := h.yt.AddPlaylistItem(r.Context(), playlistID, req.VideoID); err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Track added to playlist",
	})
}

// RemoveFromPlaylistHandler handles POST /api/library/playlist/{playlist_id}/remove.
func (h *APIHandler) RemoveFromPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playlist_id"]

	var req RemoveSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VideoID == "" {
		respondWithError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	if err := h.yt.RemovePlaylistItem(r.Context(), playlistID, req.VideoID, req.SetVideoID); err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Track removed from playlist",
	})
}

// DeletePlaylistHandler handles DELETE /api/library/playlist/{playlist_id}.
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playlist_id"]

	if err := h.yt.DeletePlaylist(r.Context(), playlistID); err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Playlist deleted",
	})
}

// DownloadPlaylistHandler handles POST /api/library/download-playlist.
// The download runs synchronously; progress is streamed on the websocket
// endpoint.
func (h *APIHandler) DownloadPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req DownloadPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Tracks) == 0 {
		respondWithError(w, http.StatusBadRequest, "No tracks to download")
		return
	}

	// A large playlist outlives the server's write timeout; lift the
	// deadline for this response so the summary still reaches the client.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn("could not clear write deadline", logger.ErrorField(err))
	}

	result, err := h.library.DownloadPlaylist(r.Context(), req.PlaylistName, req.Tracks)
	if err != nil {
		logger.Error("playlist download failed",
			logger.String("playlist", req.PlaylistName),
			logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Download finished: %d succeeded, %d skipped, %d failed",
			result.Success, result.Skipped, result.Failed),
		"details": result,
	})
}

// LibraryPodcastsHandler handles GET /api/podcasts/library.
func (h *APIHandler) LibraryPodcastsHandler(w http.ResponseWriter, r *http.Request) {
	podcasts, err := h.yt.GetLibraryPodcasts(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"podcasts": podcasts})
}

// LibraryChannelsHandler handles GET /api/podcasts/channels.
func (h *APIHandler) LibraryChannelsHandler(w http.ResponseWriter, r *http.Request) {
	channels, err := h.yt.GetLibraryChannels(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

// ChannelHandler handles GET /api/podcasts/channel/{channel_id}.
func (h *APIHandler) ChannelHandler(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channel_id"]

	channel, err := h.yt.GetChannel(r.Context(), channelID)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, channel)
}

// ChannelEpisodesHandler handles GET /api/podcasts/channel/{channel_id}/episodes.
func (h *APIHandler) ChannelEpisodesHandler(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channel_id"]
	continuation := r.URL.Query().Get("continuation")

	page, err := h.yt.GetChannelEpisodes(r.Context(), channelID, continuation)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}
