package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"EchoFM/logger"
)

// UpstreamLoginRequest carries browser headers or cookies pasted by the
// user.
type UpstreamLoginRequest struct {
	HeadersRaw string `json:"headers_raw"`
}

// UpstreamStatusHandler handles GET /api/auth/status.
func (h *APIHandler) UpstreamStatusHandler(w http.ResponseWriter, r *http.Request) {
	if h.creds.IsAuthenticated() {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"authenticated": true,
			"message":       "Upstream credentials are configured",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": false,
		"message":       "Not authenticated with the upstream service",
	})
}

// UpstreamLoginHandler handles POST /api/auth/login. Accepts raw request
// headers, a cookie string, or a cookie-export JSON dump.
func (h *APIHandler) UpstreamLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req UpstreamLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(strings.TrimSpace(req.HeadersRaw)) < 10 {
		respondWithError(w, http.StatusBadRequest, "Empty input. Paste the copied cookies or headers.")
		return
	}

	if _, err := h.creds.Save(req.HeadersRaw); err != nil {
		logger.Warn("upstream login failed", logger.ErrorField(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Credentials saved",
	})
}

// UpstreamLogoutHandler handles POST /api/auth/logout.
func (h *APIHandler) UpstreamLogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.creds.Logout(); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}
