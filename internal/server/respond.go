package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"invest-calendar/internal/auth"
	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream"
)

const (
	timeFormat = "2006-01-02T15:04:05Z07:00"
	dateFormat = "2006-01-02"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps domain and upstream failures onto HTTP statuses.
// Transient upstream trouble becomes 503 so clients know a retry may help.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case upstream.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "market data temporarily unavailable")
	default:
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "upstream request failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
