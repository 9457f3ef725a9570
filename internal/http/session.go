package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type saveKeyRequest struct {
	APIKey  string `json:"apiKey"`
	Persist bool   `json:"persist"`
}

// SaveKey stores the api key in an httpOnly session cookie and, when asked,
// mirrors it to the key file. The key is never echoed back after this.
func (h *Handler) SaveKey(w http.ResponseWriter, r *http.Request) {
	var req saveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	if req.Persist {
		if err := h.Keys.Save(req.APIKey); err != nil {
			h.Log.Error("persist api key failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not persist api key")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    req.APIKey,
		Path:     "/",
		MaxAge:   int(h.CookieMaxAge.Seconds()),
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "api key saved"})
}

// ClearKey removes the session cookie and optionally the persisted key.
// Clearing when nothing was ever set succeeds.
func (h *Handler) ClearKey(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("clearPersist") == "true" {
		if err := h.Keys.Clear(); err != nil {
			h.Log.Error("clear persisted api key failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not clear persisted api key")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "api key cleared"})
}

// CheckKey reports whether any credential resolves for this request,
// without revealing it.
func (h *Handler) CheckKey(w http.ResponseWriter, r *http.Request) {
	_, err := h.resolveKey(r)
	writeJSON(w, http.StatusOK, map[string]bool{"hasKey": err == nil})
}

// Config reports whether a key is persisted on disk.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"hasKey": h.Keys.HasKey()})
}
