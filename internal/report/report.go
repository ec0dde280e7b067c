// Package report joins contacts, messages and RSVP responses into one
// status row per live contact.
package report

import (
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/util"
)

// Row is a denormalized view of one contact. MessageStatus and RSVPStatus
// are "pending" when no message or response exists.
type Row struct {
	ContactID       int64      `json:"contactId"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email,omitempty"`
	ListID          int64      `json:"listId"`
	Tags            []string   `json:"tags"`
	MessageStatus   string     `json:"messageStatus"`
	RSVPStatus      string     `json:"rsvpStatus"`
	EventID         int64      `json:"eventId,omitempty"`
	MessageID       int64      `json:"messageId,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
	RSVPEventID     int64      `json:"rsvpEventId,omitempty"`
	RSVPSubmittedAt *time.Time `json:"rsvpSubmittedAt,omitempty"`
	MessageError    string     `json:"messageError,omitempty"`
	RSVPNotes       string     `json:"rsvpNotes,omitempty"`
}

// Responded reports whether the contact has answered at all.
func (r Row) Responded() bool { return r.RSVPStatus != domain.StatusPending }

// Build produces one row per non-deleted contact, in contact order. The
// latest message per contact is chosen by SentAt with ties going to the
// higher id; the latest RSVP per util.PhoneKey by SubmittedAt, same tie rule. The
// inputs are not modified.
func Build(contacts []domain.Contact, messages []domain.Message, rsvps []domain.RSVPResponse) []Row {
	latestMsg := make(map[int64]domain.Message, len(contacts))
	for _, m := range messages {
		if cur, ok := latestMsg[m.ContactID]; !ok || newerMessage(m, cur) {
			latestMsg[m.ContactID] = m
		}
	}
	latestRSVP := make(map[string]domain.RSVPResponse, len(rsvps))
	for _, r := range rsvps {
		key := util.PhoneKey(r.Phone)
		if cur, ok := latestRSVP[key]; !ok || newerRSVP(r, cur) {
			latestRSVP[key] = r
		}
	}

	rows := make([]Row, 0, len(contacts))
	for _, c := range contacts {
		if c.IsDeleted {
			continue
		}
		row := Row{
			ContactID:     c.ID,
			Name:          c.Name,
			Phone:         c.Phone,
			Email:         c.Email,
			ListID:        c.ListID,
			Tags:          append([]string(nil), c.Tags...),
			MessageStatus: domain.StatusPending,
			RSVPStatus:    domain.StatusPending,
		}
		if m, ok := latestMsg[c.ID]; ok {
			sentAt := m.SentAt
			row.MessageStatus = string(m.Status)
			row.EventID = m.EventID
			row.MessageID = m.ID
			row.LastMessageAt = &sentAt
			row.MessageError = m.Error
		}
		if r, ok := latestRSVP[util.PhoneKey(c.Phone)]; ok {
			at := r.SubmittedAt
			row.RSVPStatus = string(r.Response)
			row.RSVPEventID = r.EventID
			row.RSVPSubmittedAt = &at
			row.RSVPNotes = r.Notes
		}
		rows = append(rows, row)
	}
	return rows
}

func newerMessage(a, b domain.Message) bool {
	if a.SentAt.Equal(b.SentAt) {
		return a.ID > b.ID
	}
	return a.SentAt.After(b.SentAt)
}

func newerRSVP(a, b domain.RSVPResponse) bool {
	if a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.ID > b.ID
	}
	return a.SubmittedAt.After(b.SubmittedAt)
}

type Stats struct {
	Total        int     `json:"total"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Read         int     `json:"read"`
	Failed       int     `json:"failed"`
	Responded    int     `json:"responded"`
	Yes          int     `json:"yes"`
	No           int     `json:"no"`
	Maybe        int     `json:"maybe"`
	DeliveryRate float64 `json:"deliveryRate"`
	ResponseRate float64 `json:"responseRate"`
}

// Summarize counts rows by derived status. Sent includes anything that left
// the queue (sent, delivered, read); Delivered includes read. Rates are
// percentages of Sent and Total respectively, zero when the base is zero.
func Summarize(rows []Row) Stats {
	var s Stats
	s.Total = len(rows)
	for _, r := range rows {
		switch domain.MessageStatus(r.MessageStatus) {
		case domain.StatusSent:
			s.Sent++
		case domain.StatusDelivered:
			s.Sent++
			s.Delivered++
		case domain.StatusRead:
			s.Sent++
			s.Delivered++
			s.Read++
		case domain.StatusFailed:
			s.Failed++
		}
		switch domain.RSVPAnswer(r.RSVPStatus) {
		case domain.RSVPYes:
			s.Yes++
		case domain.RSVPNo:
			s.No++
		case domain.RSVPMaybe:
			s.Maybe++
		}
		if r.Responded() {
			s.Responded++
		}
	}
	s.DeliveryRate = Percent(s.Delivered, s.Sent)
	s.ResponseRate = Percent(s.Responded, s.Total)
	return s
}

// Percent is n as a percentage of of, or 0 when of is 0.
func Percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) * 100 / float64(of)
}
