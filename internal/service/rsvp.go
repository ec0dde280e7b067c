package service

import (
	"bytes"
	"context"
	"slices"
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/export"
	"rsvpdash/internal/observability"
	"rsvpdash/internal/store"
	"rsvpdash/internal/util"
)

type RSVPStore interface {
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	ListRSVPs(ctx context.Context) ([]domain.RSVPResponse, error)
	UpsertRSVP(ctx context.Context, in store.RSVPUpsert) (domain.RSVPResponse, bool, error)
}

type RSVPService struct {
	Store    RSVPStore
	Notifier Notifier
	Now      func() time.Time
}

// Submit records a guest's answer. A second submission for the same phone
// and event replaces the first; created reports which case applied.
func (s *RSVPService) Submit(ctx context.Context, req domain.SubmitRSVPRequest) (resp domain.RSVPResponse, created bool, err error) {
	if err := req.Validate(); err != nil {
		observability.RSVPSubmissions.WithLabelValues("invalid").Inc()
		return domain.RSVPResponse{}, false, err
	}
	if _, err := s.Store.GetEvent(ctx, req.EventID); err != nil {
		observability.RSVPSubmissions.WithLabelValues("unknown_event").Inc()
		return domain.RSVPResponse{}, false, err
	}
	resp, created, err = s.Store.UpsertRSVP(ctx, store.RSVPUpsert{Request: req, Now: nowOr(s.Now)})
	if err != nil {
		return domain.RSVPResponse{}, false, notifyErr(ctx, s.Notifier, "rsvp not saved", err)
	}
	result := "updated"
	if created {
		result = "created"
	}
	observability.RSVPSubmissions.WithLabelValues(result).Inc()
	notifierOr(s.Notifier).Success(ctx, "rsvp "+result)
	return resp, created, nil
}

func (s *RSVPService) List(ctx context.Context) ([]domain.RSVPResponse, error) {
	return s.Store.ListRSVPs(ctx)
}

func (s *RSVPService) ListByEvent(ctx context.Context, eventID int64) ([]domain.RSVPResponse, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.where(ctx, func(r domain.RSVPResponse) bool { return r.EventID == eventID })
}

func (s *RSVPService) ListByPhone(ctx context.Context, phone string) ([]domain.RSVPResponse, error) {
	key := util.PhoneKey(phone)
	return s.where(ctx, func(r domain.RSVPResponse) bool { return util.PhoneKey(r.Phone) == key })
}

func (s *RSVPService) where(ctx context.Context, keep func(domain.RSVPResponse) bool) ([]domain.RSVPResponse, error) {
	all, err := s.Store.ListRSVPs(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(r domain.RSVPResponse) bool { return !keep(r) }), nil
}

type RSVPStats struct {
	Total int `json:"total"`
	Yes   int `json:"yes"`
	No    int `json:"no"`
	Maybe int `json:"maybe"`
}

// Stats counts responses, optionally for one event (eventID 0 means all).
func (s *RSVPService) Stats(ctx context.Context, eventID int64) (RSVPStats, error) {
	rsvps, err := s.where(ctx, func(r domain.RSVPResponse) bool { return eventID == 0 || r.EventID == eventID })
	if err != nil {
		return RSVPStats{}, err
	}
	return countRSVPs(rsvps), nil
}

func countRSVPs(rsvps []domain.RSVPResponse) RSVPStats {
	st := RSVPStats{Total: len(rsvps)}
	for _, r := range rsvps {
		switch r.Response {
		case domain.RSVPYes:
			st.Yes++
		case domain.RSVPNo:
			st.No++
		case domain.RSVPMaybe:
			st.Maybe++
		}
	}
	return st
}

// File is an encoded export ready to be served as a download.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

const csvContentType = "text/csv; charset=utf-8"

// Export encodes every response recorded for the event.
func (s *RSVPService) Export(ctx context.Context, eventID int64) (File, error) {
	ev, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return File{}, err
	}
	rsvps, err := s.ListByEvent(ctx, eventID)
	if err != nil {
		return File{}, err
	}
	var buf bytes.Buffer
	if err := export.EncodeRSVPs(&buf, rsvps); err != nil {
		return File{}, err
	}
	return File{
		Name:        export.Filename(ev.Name+"-rsvps", nil, nowOr(s.Now)),
		ContentType: csvContentType,
		Body:        buf.Bytes(),
	}, nil
}
