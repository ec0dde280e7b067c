package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/observability"
	"rsvpdash/internal/statuscallback"
)

type StatusApplier interface {
	ApplyStatus(ctx context.Context, id int64, status domain.MessageStatus, lastError string) (domain.Message, error)
}

// Webhook accepts signed delivery status callbacks. An accepted callback is
// authoritative and cancels any simulated transition still pending.
type Webhook struct {
	Messages        StatusApplier
	VerifySignature func(token, fullURL, provided string, form url.Values) bool
	Token           string
	PublicURL       string
}

func (w *Webhook) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/webhooks/status", w.handleStatus).Methods(http.MethodPost)
}

func (w *Webhook) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(rw, ErrBadForm, http.StatusBadRequest)
		return
	}
	if w.VerifySignature == nil || !w.VerifySignature(w.Token, w.PublicURL, r.Header.Get(statuscallback.Header), r.PostForm) {
		http.Error(rw, ErrInvalidSignature, http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PostForm.Get(statuscallback.FieldMessageID), 10, 64)
	if err != nil || id <= 0 {
		http.Error(rw, ErrMissingID, http.StatusBadRequest)
		return
	}
	status := r.PostForm.Get(statuscallback.FieldStatus)
	lastError := r.PostForm.Get(statuscallback.FieldError)

	observability.StatusCallbacks.WithLabelValues(status).Inc()

	var to domain.MessageStatus
	switch status {
	case "delivered":
		to = domain.StatusDelivered
	case "read":
		to = domain.StatusRead
	case "failed", "undelivered":
		to = domain.StatusFailed
	default:
		// queued/sending/sent are intermediate; never downgrade
		rw.WriteHeader(http.StatusOK)
		return
	}

	if _, err := w.Messages.ApplyStatus(r.Context(), id, to, lastError); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(rw, ErrNotFound, http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidTransition):
			// late or duplicate callback for a message already past this state
			slog.Info("status callback ignored", "message_id", id, "status", status, "err", err)
			rw.WriteHeader(http.StatusOK)
		default:
			slog.Error("status callback failed", "err", err, "message_id", id, "status", status)
			http.Error(rw, ErrInternal, http.StatusInternalServerError)
		}
		return
	}
	rw.WriteHeader(http.StatusOK)
}
