package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"EchoFM/cache"
	"EchoFM/config"
	"EchoFM/core/artifact"
	"EchoFM/core/auth"
	"EchoFM/core/downloader"
	"EchoFM/core/library"
	"EchoFM/core/ytmusic"
	"EchoFM/db"
	"EchoFM/logger"
	"EchoFM/model"
	"EchoFM/repository"
	"EchoFM/storage"
)

// checkAuthConfig rejects a setup whose protected routes would accept
// tokens signed with an empty key.
func checkAuthConfig(cfg *config.Config) error {
	if cfg.AuthRequired && cfg.JWTSecret == "" {
		return errors.New("AUTH_REQUIRED is set but JWT_SECRET is empty")
	}
	return nil
}

// Start initializes every component and runs the HTTP server until
// SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxMB,
		MaxAge:     cfg.LogMaxAge,
		MaxBackups: 5,
		Compress:   true,
	})

	if err := checkAuthConfig(cfg); err != nil {
		logger.Fatal("invalid auth configuration", logger.ErrorField(err))
	}
	auth.SetJWTSecret(cfg.JWTSecret)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatal("failed to create data directory", logger.ErrorField(err))
	}

	// Redis backs the search/metadata cache; the server degrades to
	// uncached lookups without it.
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, search caching disabled", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(&model.User{}); err != nil {
		logger.Fatal("failed to migrate database", logger.ErrorField(err))
	}

	mirrorBucket := ""
	if cfg.MinioEnabled {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
		}
		mirrorBucket = cfg.MinioBucket
	}

	creds := auth.NewCredentialStore(cfg.CredentialFile)
	if err := creds.Watch(); err != nil {
		logger.Warn("credential file watching disabled", logger.ErrorField(err))
	}
	defer creds.Close()

	dl := downloader.NewYtDlp(cfg.YtDlpPath, cfg.FFmpegPath, cfg.MP3Bitrate)

	artifacts, err := artifact.NewManager(artifact.Config{
		Dir:                  cfg.CacheDir,
		SettingsPath:         cfg.CacheDir + "_settings.json",
		CapacityBytes:        cfg.CacheCapacityBytes,
		FetchTimeout:         cfg.FetchTimeout,
		EvictionInterval:     cfg.EvictionInterval,
		DefaultRetentionDays: cfg.CacheRetentionDays,
		Fetcher:              downloader.NewFetcher(dl),
	})
	if err != nil {
		logger.Fatal("failed to initialize artifact cache", logger.ErrorField(err))
	}
	defer artifacts.Close()

	// Startup sweep, matching what the janitor does periodically.
	result := artifacts.Cleanup()
	if result.Deleted > 0 {
		logger.Info("expired cache entries removed on startup",
			logger.Int("deleted", result.Deleted),
			logger.Int64("freedBytes", result.FreedBytes))
	}

	yt := ytmusic.NewClient(cfg.YTMusicBaseURL, creds, cfg.UpstreamRPS)
	progress := library.NewProgressHub()
	libraryDl := library.NewDownloader(cfg.DataDir, dl, progress, mirrorBucket)

	userRepo := repository.NewUserRepository()
	apiHandler := NewAPIHandler(cfg, userRepo, artifacts, yt, dl, libraryDl, creds, progress)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	registerRoutes(router, apiHandler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // streaming and zip downloads
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func registerRoutes(router *mux.Router, h *APIHandler) {
	// Library, local-file management and cache administration can be put
	// behind app-account tokens (AUTH_REQUIRED).
	protect := func(fn http.HandlerFunc) http.HandlerFunc {
		if h.cfg != nil && h.cfg.AuthRequired {
			return h.AuthMiddleware(fn)
		}
		return fn
	}

	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)

	// Search and discovery.
	router.HandleFunc("/api/search", h.SearchHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/search/genre/{genre}", h.SearchGenreHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/home", h.HomeHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/song/{video_id}", h.SongInfoHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/podcasts", h.PodcastSearchHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/episodes", h.EpisodeSearchHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/podcast/{podcast_id}", h.PodcastDetailHandler).Methods(http.MethodGet)

	// Streaming and downloads.
	router.HandleFunc("/api/stream/{video_id}", h.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stream-info/{video_id}", h.StreamInfoHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/download/{video_id}", h.DownloadHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/download-info/{video_id}", h.DownloadInfoHandler).Methods(http.MethodGet)

	// Upstream credentials.
	router.HandleFunc("/api/auth/status", h.UpstreamStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/login", h.UpstreamLoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.UpstreamLogoutHandler).Methods(http.MethodPost)

	// App accounts.
	router.HandleFunc("/api/user/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/user/login", h.LoginHandler).Methods(http.MethodPost)

	// Upstream library.
	router.HandleFunc("/api/library/playlists", protect(h.LibraryPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/library/liked-songs", protect(h.LikedSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/library/playlist", protect(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/library/playlist/{playlist_id}", protect(h.LibraryPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/library/playlist/{playlist_id}", protect(h.DeletePlaylistHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/library/playlist/{playlist_id}/add", protect(h.AddToPlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/library/playlist/{playlist_id}/remove", protect(h.RemoveFromPlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/library/download-playlist", protect(h.DownloadPlaylistHandler)).Methods(http.MethodPost)

	// Podcast subscriptions and channels.
	router.HandleFunc("/api/podcasts/library", h.LibraryPodcastsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/podcasts/channels", h.LibraryChannelsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/podcasts/channel/{channel_id}", h.ChannelHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/podcasts/channel/{channel_id}/episodes", h.ChannelEpisodesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/podcasts/podcast/{podcast_id}", h.PodcastDetailHandler).Methods(http.MethodGet)

	// Downloaded files.
	router.HandleFunc("/api/local/playlists", h.LocalPlaylistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/local/playlist/{playlist_name}", h.LocalPlaylistHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/local/playlist/{playlist_name}", protect(h.LocalDeletePlaylistHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/local/playlist/{playlist_name}/{filename}", protect(h.LocalDeleteFileHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/local/stream/{playlist_name}/{filename}", h.LocalStreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/local/download/{playlist_name}/{filename}", h.LocalDownloadHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/local/download-zip/{playlist_name}", h.LocalDownloadZipHandler).Methods(http.MethodGet)

	// Audio cache administration.
	router.HandleFunc("/api/cache/settings", protect(h.CacheSettingsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/cache/settings", protect(h.UpdateCacheSettingsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/cache/stats", protect(h.CacheStatsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/cache/cleanup", protect(h.CacheCleanupHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/cache/clear", protect(h.CacheClearHandler)).Methods(http.MethodDelete)

	// Live per-track progress for server-side playlist downloads.
	router.Handle("/api/library/progress", h.progress)
}
