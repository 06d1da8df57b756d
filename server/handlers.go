package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"EchoFM/config"
	"EchoFM/core/artifact"
	"EchoFM/core/auth"
	"EchoFM/core/downloader"
	"EchoFM/core/library"
	"EchoFM/core/ytmusic"
	"EchoFM/logger"
	"EchoFM/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	cfg       *config.Config
	userRepo  repository.UserRepository
	artifacts *artifact.Manager
	yt        *ytmusic.Client
	dl        *downloader.YtDlp
	library   *library.Downloader
	creds     *auth.CredentialStore
	progress  *library.ProgressHub
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	artifacts *artifact.Manager,
	yt *ytmusic.Client,
	dl *downloader.YtDlp,
	libraryDl *library.Downloader,
	creds *auth.CredentialStore,
	progress *library.ProgressHub,
) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		userRepo:  userRepo,
		artifacts: artifacts,
		yt:        yt,
		dl:        dl,
		library:   libraryDl,
		creds:     creds,
		progress:  progress,
	}
}

// RootHandler serves a small service banner with the endpoint map.
func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"service": "EchoFM",
		"status":  "running",
		"endpoints": map[string]string{
			"search":   "/api/search?q=<query>",
			"home":     "/api/home",
			"stream":   "/api/stream/{video_id}",
			"download": "/api/download/{video_id}",
			"auth":     "/api/auth/status",
			"library":  "/api/library/playlists",
			"local":    "/api/local/playlists",
			"cache":    "/api/cache/stats",
		},
	})
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}

// upstreamStatus maps client errors to the right HTTP status: missing
// upstream credentials are a 401, everything else a 502/500.
func (h *APIHandler) upstreamError(w http.ResponseWriter, err error) {
	if err == ytmusic.ErrAuthRequired {
		respondWithError(w, http.StatusUnauthorized, "upstream authentication required")
		return
	}
	respondWithError(w, http.StatusBadGateway, err.Error())
}

// AuthMiddleware checks for a valid JWT token on account-scoped routes.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", claims.UserID)
		ctx = context.WithValue(ctx, "username", claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (uint, error) {
	userID, ok := ctx.Value("userID").(uint)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username set by AuthMiddleware.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value("username").(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}
