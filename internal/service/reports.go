package service

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/export"
	"rsvpdash/internal/filter"
	"rsvpdash/internal/observability"
	"rsvpdash/internal/report"
	"rsvpdash/internal/store"
)

type ReportStore interface {
	Snapshot(ctx context.Context) (store.Snapshot, error)
}

// ReportService rebuilds the joined view from a fresh snapshot on every
// call; nothing is cached between calls.
type ReportService struct {
	Store ReportStore
	Now   func() time.Time
}

func (s *ReportService) build(ctx context.Context) ([]report.Row, store.Snapshot, error) {
	timer := prometheus.NewTimer(observability.ReportBuild)
	defer timer.ObserveDuration()
	snap, err := s.Store.Snapshot(ctx)
	if err != nil {
		return nil, store.Snapshot{}, err
	}
	return report.Build(snap.Contacts, snap.Messages, snap.RSVPs), snap, nil
}

func (s *ReportService) Rows(ctx context.Context, c filter.ReportCriteria) ([]report.Row, error) {
	rows, _, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	return c.Apply(rows), nil
}

// Contacts backs the contacts table, whose status columns are derived.
func (s *ReportService) Contacts(ctx context.Context, c filter.ContactCriteria) ([]report.Row, error) {
	rows, _, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	return c.Apply(rows), nil
}

func (s *ReportService) Stats(ctx context.Context, c filter.ReportCriteria) (report.Stats, error) {
	rows, err := s.Rows(ctx, c)
	if err != nil {
		return report.Stats{}, err
	}
	return report.Summarize(rows), nil
}

// Export encodes every live row narrowed by opts alone; on-screen search and
// filters do not apply. The file name reflects the event and RSVP statuses
// exported.
func (s *ReportService) Export(ctx context.Context, opts export.Options) (File, error) {
	rows, snap, err := s.build(ctx)
	if err != nil {
		return File{}, err
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, rows, opts); err != nil {
		return File{}, err
	}
	return File{
		Name:        export.Filename(eventName(snap.Events, opts.EventID), opts.RSVPStatuses, nowOr(s.Now)),
		ContentType: csvContentType,
		Body:        buf.Bytes(),
	}, nil
}

// eventName is the internal name of the event an export is narrowed to,
// "event" when the id matches nothing, and empty when it narrows nothing.
func eventName(events []domain.Event, id string) string {
	if id == "" || id == domain.FilterAll {
		return ""
	}
	n, _ := strconv.ParseInt(id, 10, 64)
	for _, ev := range events {
		if ev.ID == n {
			return ev.Name
		}
	}
	return "event"
}
