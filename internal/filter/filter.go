// Package filter narrows row sets with AND-composed predicates. Every call
// is a full O(n) scan with no state kept between calls.
package filter

import (
	"strconv"
	"strings"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/report"
)

type Predicate[T any] func(T) bool

// Apply returns the rows matching every predicate, in input order. With no
// predicates the input is returned as a fresh slice.
func Apply[T any](rows []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if matchAll(r, preds) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll[T any](r T, preds []Predicate[T]) bool {
	for _, p := range preds {
		if p != nil && !p(r) {
			return false
		}
	}
	return true
}

// Search matches when any field contains term, ignoring case. Only the
// empty term matches everything; whitespace is part of the term.
func Search[T any](term string, fields func(T) []string) Predicate[T] {
	term = strings.ToLower(term)
	if term == "" {
		return nil
	}
	return func(r T) bool {
		for _, f := range fields(r) {
			if f != "" && strings.Contains(strings.ToLower(f), term) {
				return true
			}
		}
		return false
	}
}

// Equals matches field values equal to value. "all" and the empty string
// match everything.
func Equals[T any](value string, field func(T) string) Predicate[T] {
	if isAll(value) {
		return nil
	}
	return func(r T) bool { return field(r) == value }
}

func isAll(v string) bool { return v == "" || v == domain.FilterAll }

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// StatusResponded selects rows whose RSVP is anything but pending.
const StatusResponded = "responded"

// ReportCriteria drives the reports page. Event is an event id or "all".
// Status is a message status, "responded", or "all".
type ReportCriteria struct {
	Search string `json:"search"`
	Event  string `json:"event"`
	Status string `json:"status"`
	RSVP   string `json:"rsvp"`
}

func (c ReportCriteria) Predicates() []Predicate[report.Row] {
	status := Equals(c.Status, func(r report.Row) string { return r.MessageStatus })
	if c.Status == StatusResponded {
		status = report.Row.Responded
	}
	return []Predicate[report.Row]{
		Search(c.Search, rowFields),
		Equals(c.Event, func(r report.Row) string { return formatID(r.EventID) }),
		status,
		Equals(c.RSVP, func(r report.Row) string { return r.RSVPStatus }),
	}
}

func (c ReportCriteria) Apply(rows []report.Row) []report.Row {
	return Apply(rows, c.Predicates()...)
}

// ContactCriteria drives the contacts table, which shows derived statuses.
type ContactCriteria struct {
	Search string `json:"search"`
	List   string `json:"list"`
	Status string `json:"status"`
	RSVP   string `json:"rsvp"`
}

func (c ContactCriteria) Apply(rows []report.Row) []report.Row {
	return Apply(rows,
		Search(c.Search, rowFields),
		Equals(c.List, func(r report.Row) string { return formatID(r.ListID) }),
		Equals(c.Status, func(r report.Row) string { return r.MessageStatus }),
		Equals(c.RSVP, func(r report.Row) string { return r.RSVPStatus }),
	)
}

// rowFields are the raw name, phone and email; phone is not normalized.
func rowFields(r report.Row) []string { return []string{r.Name, r.Phone, r.Email} }

// MessageRow is a message joined with the names shown next to it.
type MessageRow struct {
	domain.Message
	ContactName string `json:"contactName"`
	EventName   string `json:"eventName"`
}

type MessageCriteria struct {
	Search string `json:"search"`
	Status string `json:"status"`
	Event  string `json:"event"`
}

func (c MessageCriteria) Apply(rows []MessageRow) []MessageRow {
	return Apply(rows,
		Search(c.Search, func(m MessageRow) []string { return []string{m.ContactName, m.EventName, m.Content} }),
		Equals(c.Status, func(m MessageRow) string { return string(m.Status) }),
		Equals(c.Event, func(m MessageRow) string { return formatID(m.EventID) }),
	)
}
