package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/welovename555/hero-sms-dashboard/internal/credential"
	"github.com/welovename555/hero-sms-dashboard/internal/herosms"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw forwards upstream JSON verbatim.
func writeRaw(w http.ResponseWriter, status int, doc json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(doc)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps client failures onto distinct HTTP codes. The system
// this replaces collapsed everything to 500; the split below is the stricter
// mapping the taxonomy calls for.
func statusForError(err error) int {
	var unavailable *herosms.UnavailableError
	var unexpected *herosms.UnexpectedResponseError
	switch {
	case errors.Is(err, credential.ErrMissing),
		errors.Is(err, herosms.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, herosms.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, herosms.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, herosms.ErrNoInventory):
		return http.StatusConflict
	case errors.As(err, &unavailable), errors.As(err, &unexpected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeClientError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}
