package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"rsvpdash/internal/domain"
)

const (
	ErrInvalidJSON      = "invalid json"
	ErrMissingID        = "missing id"
	ErrInternal         = "internal error"
	ErrNotFound         = "not found"
	ErrBadForm          = "bad form"
	ErrInvalidSignature = "invalid signature"
	ErrBadUpload        = "bad upload"
	ErrConflict         = "status conflict"
)

// writeError maps domain errors to status codes. Validation-class errors
// echo their message; anything unrecognized is logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, ErrNotFound, http.StatusNotFound)
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrNoRecipients),
		errors.Is(err, domain.ErrImportFormat),
		errors.Is(err, domain.ErrUnsupportedExportFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, ErrConflict, http.StatusConflict)
	default:
		slog.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path)
		http.Error(w, ErrInternal, http.StatusInternalServerError)
	}
}
