package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"EchoFM/cache"
	"EchoFM/logger"
)

const defaultSearchLimit = 20

// SearchHandler handles GET /api/search?q=...&type=songs|podcasts|episodes.
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = "songs"
	}

	ctx := r.Context()
	key := cache.SearchKey(kind, query, defaultSearchLimit)

	var results interface{}
	switch kind {
	case "podcasts":
		var cached []interface{}
		if cache.GetCachedJSON(ctx, key, &cached) {
			results = cached
			break
		}
		podcasts, err := h.yt.SearchPodcasts(ctx, query, defaultSearchLimit)
		if err != nil {
			h.upstreamError(w, err)
			return
		}
		cache.CacheSearchResult(ctx, key, podcasts)
		results = podcasts
	case "episodes":
		var cached []interface{}
		if cache.GetCachedJSON(ctx, key, &cached) {
			results = cached
			break
		}
		episodes, err := h.yt.SearchEpisodes(ctx, query, defaultSearchLimit)
		if err != nil {
			h.upstreamError(w, err)
			return
		}
		cache.CacheSearchResult(ctx, key, episodes)
		results = episodes
	default:
		kind = "songs"
		var cached []interface{}
		if cache.GetCachedJSON(ctx, key, &cached) {
			results = cached
			break
		}
		songs, err := h.yt.SearchSongs(ctx, query, defaultSearchLimit)
		if err != nil {
			h.upstreamError(w, err)
			return
		}
		cache.CacheSearchResult(ctx, key, songs)
		results = songs
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"query":   query,
		"type":    kind,
	})
}

// SearchGenreHandler handles GET /api/search/genre/{genre}.
func (h *APIHandler) SearchGenreHandler(w http.ResponseWriter, r *http.Request) {
	genre := mux.Vars(r)["genre"]

	ctx := r.Context()
	key := cache.SearchKey("genre", genre, defaultSearchLimit)

	var cached []interface{}
	if cache.GetCachedJSON(ctx, key, &cached) {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"results": cached,
			"genre":   genre,
		})
		return
	}

	songs, err := h.yt.SearchByGenre(ctx, genre, defaultSearchLimit)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	cache.CacheSearchResult(ctx, key, songs)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": songs,
		"genre":   genre,
	})
}

// HomeHandler handles GET /api/home.
func (h *APIHandler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.yt.GetHome(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"results": songs})
}

// SongInfoHandler handles GET /api/song/{video_id}.
func (h *APIHandler) SongInfoHandler(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["video_id"]
	ctx := r.Context()

	var cached map[string]interface{}
	if cache.GetCachedJSON(ctx, cache.SongInfoKey(videoID), &cached) {
		respondWithJSON(w, http.StatusOK, cached)
		return
	}

	song, err := h.yt.GetSongInfo(ctx, videoID)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	if song == nil {
		respondWithError(w, http.StatusNotFound, "song not found")
		return
	}
	cache.CacheSongInfo(ctx, videoID, song)
	respondWithJSON(w, http.StatusOK, song)
}

// PodcastSearchHandler handles GET /api/podcasts?q=...
func (h *APIHandler) PodcastSearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	podcasts, err := h.yt.SearchPodcasts(r.Context(), query, defaultSearchLimit)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": podcasts,
		"query":   query,
	})
}

// EpisodeSearchHandler handles GET /api/episodes?q=...
func (h *APIHandler) EpisodeSearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	episodes, err := h.yt.SearchEpisodes(r.Context(), query, defaultSearchLimit)
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": episodes,
		"query":   query,
	})
}

// PodcastDetailHandler handles GET /api/podcast/{podcast_id}.
func (h *APIHandler) PodcastDetailHandler(w http.ResponseWriter, r *http.Request) {
	podcastID := mux.Vars(r)["podcast_id"]

	detail, err := h.yt.GetPodcast(r.Context(), podcastID)
	if err != nil {
		logger.Warn("podcast lookup failed",
			logger.String("podcastId", podcastID),
			logger.ErrorField(err))
		h.upstreamError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}
