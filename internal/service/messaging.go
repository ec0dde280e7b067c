package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/filter"
	"rsvpdash/internal/report"
	"rsvpdash/internal/store"
	"rsvpdash/internal/util"
)

// DefaultReminderTemplate is used when neither the request nor the event
// supplies a reminder body.
const DefaultReminderTemplate = "Hi {Name}, a reminder about {Event} on {Date} at {Location}. Please RSVP: {link}"

type MessageStore interface {
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	GetContact(ctx context.Context, id int64, opts store.ListOptions) (domain.Contact, error)
	ListContacts(ctx context.Context, opts store.ListOptions) ([]domain.Contact, error)
	ListContactsByList(ctx context.Context, listID int64, opts store.ListOptions) ([]domain.Contact, error)
	GetMessage(ctx context.Context, id int64) (domain.Message, error)
	ListMessages(ctx context.Context) ([]domain.Message, error)
	ListRSVPs(ctx context.Context) ([]domain.RSVPResponse, error)
}

// Sender creates messages and owns their status lifecycle.
type Sender interface {
	Send(ctx context.Context, req domain.BulkSendRequest) (domain.SendResult, error)
	Apply(ctx context.Context, id int64, to domain.MessageStatus, lastError string) (domain.Message, error)
}

type MessagingService struct {
	Store    MessageStore
	Sender   Sender
	Notifier Notifier
	Now      func() time.Time
}

// SendInvitations renders the body for each recipient and hands the batch to
// the sender. The body is req.Content, else the event's template. With no
// contact ids every live contact on the event's lists is invited.
func (s *MessagingService) SendInvitations(ctx context.Context, eventID int64, req domain.SendMessagesRequest) (domain.SendResult, error) {
	ev, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.SendResult{}, err
	}
	body := firstNonBlank(req.Content, ev.MessageTemplate)
	if body == "" {
		return domain.SendResult{}, notifyErr(ctx, s.Notifier, "invitations not sent", domain.ValidationError{Field: "content"})
	}
	contacts, err := s.recipients(ctx, ev, req.ContactIDs)
	if err != nil {
		return domain.SendResult{}, notifyErr(ctx, s.Notifier, "invitations not sent", err)
	}
	return s.send(ctx, ev, contacts, body, domain.MessageInvitation)
}

// SendReminders targets contacts without an RSVP for the event. Contacts
// that already got the event's maximum number of reminders, or whose first
// message is older than the reminder window, are left out.
func (s *MessagingService) SendReminders(ctx context.Context, eventID int64, req domain.SendMessagesRequest) (domain.SendResult, error) {
	ev, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.SendResult{}, err
	}
	contacts, err := s.recipients(ctx, ev, req.ContactIDs)
	if err != nil {
		return domain.SendResult{}, notifyErr(ctx, s.Notifier, "reminders not sent", err)
	}
	msgs, err := s.Store.ListMessages(ctx)
	if err != nil {
		return domain.SendResult{}, err
	}
	rsvps, err := s.Store.ListRSVPs(ctx)
	if err != nil {
		return domain.SendResult{}, err
	}

	answered := map[string]bool{}
	for _, r := range rsvps {
		if r.EventID == eventID {
			answered[util.PhoneKey(r.Phone)] = true
		}
	}
	reminders := map[int64]int{}
	firstSent := map[int64]time.Time{}
	for _, m := range msgs {
		if m.EventID != eventID {
			continue
		}
		if m.Type == domain.MessageReminder {
			reminders[m.ContactID]++
		}
		if t, ok := firstSent[m.ContactID]; !ok || m.SentAt.Before(t) {
			firstSent[m.ContactID] = m.SentAt
		}
	}

	now := nowOr(s.Now)
	limits := ev.Reminders
	contacts = slices.DeleteFunc(contacts, func(c domain.Contact) bool {
		if answered[util.PhoneKey(c.Phone)] {
			return true
		}
		if limits.MaxReminders > 0 && reminders[c.ID] >= limits.MaxReminders {
			return true
		}
		first, ok := firstSent[c.ID]
		return ok && limits.Window() > 0 && now.Sub(first) > limits.Window()
	})
	if len(contacts) == 0 {
		return domain.SendResult{}, notifyErr(ctx, s.Notifier, "reminders not sent", domain.ErrNoRecipients)
	}
	body := firstNonBlank(req.Content, DefaultReminderTemplate)
	return s.send(ctx, ev, contacts, body, domain.MessageReminder)
}

// SendOne sends a single invitation and returns the created message.
func (s *MessagingService) SendOne(ctx context.Context, eventID, contactID int64, content string) (domain.Message, error) {
	res, err := s.SendInvitations(ctx, eventID, domain.SendMessagesRequest{ContactIDs: []int64{contactID}, Content: content})
	if err != nil {
		return domain.Message{}, err
	}
	return res.Messages[0], nil
}

func (s *MessagingService) send(ctx context.Context, ev domain.Event, contacts []domain.Contact, body string, typ domain.MessageType) (domain.SendResult, error) {
	recipients := make([]domain.Recipient, 0, len(contacts))
	for _, c := range contacts {
		recipients = append(recipients, domain.Recipient{
			ContactID: c.ID,
			Content:   util.RenderTemplate(body, util.ContextFor(ev, c)),
		})
	}
	res, err := s.Sender.Send(ctx, domain.BulkSendRequest{EventID: ev.ID, Recipients: recipients, Type: typ})
	if err != nil {
		return domain.SendResult{}, notifyErr(ctx, s.Notifier, fmt.Sprintf("%ss not sent", typ), err)
	}
	notifierOr(s.Notifier).Success(ctx, fmt.Sprintf("%d %s(s) sent for %q", len(res.Messages), typ, ev.DisplayName()))
	return res, nil
}

// recipients resolves explicit ids, or every live contact on the event's
// lists when ids is empty. Order follows ids, or list then contact order.
func (s *MessagingService) recipients(ctx context.Context, ev domain.Event, ids []int64) ([]domain.Contact, error) {
	var out []domain.Contact
	seen := map[int64]bool{}
	if len(ids) > 0 {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			c, err := s.Store.GetContact(ctx, id, store.ListOptions{})
			if err != nil {
				return nil, err
			}
			seen[id] = true
			out = append(out, c)
		}
		return out, nil
	}
	for _, listID := range ev.ContactListIDs {
		contacts, err := s.Store.ListContactsByList(ctx, listID, store.ListOptions{})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, c := range contacts {
			if !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoRecipients
	}
	return out, nil
}

func (s *MessagingService) Get(ctx context.Context, id int64) (domain.Message, error) {
	return s.Store.GetMessage(ctx, id)
}

// List joins messages with contact and event names, newest first, then
// applies c.
func (s *MessagingService) List(ctx context.Context, c filter.MessageCriteria) ([]filter.MessageRow, error) {
	msgs, err := s.Store.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	contacts, err := s.Store.ListContacts(ctx, store.ListOptions{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}
	events, err := s.Store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(contacts))
	for _, ct := range contacts {
		names[ct.ID] = ct.Name
	}
	eventNames := make(map[int64]string, len(events))
	for _, ev := range events {
		eventNames[ev.ID] = ev.DisplayName()
	}

	rows := make([]filter.MessageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, filter.MessageRow{Message: m, ContactName: names[m.ContactID], EventName: eventNames[m.EventID]})
	}
	slices.SortStableFunc(rows, func(a, b filter.MessageRow) int {
		if n := b.SentAt.Compare(a.SentAt); n != 0 {
			return n
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return c.Apply(rows), nil
}

func (s *MessagingService) ListByEvent(ctx context.Context, eventID int64) ([]domain.Message, error) {
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.listWhere(ctx, func(m domain.Message) bool { return m.EventID == eventID })
}

func (s *MessagingService) ListByContact(ctx context.Context, contactID int64) ([]domain.Message, error) {
	return s.listWhere(ctx, func(m domain.Message) bool { return m.ContactID == contactID })
}

func (s *MessagingService) listWhere(ctx context.Context, keep func(domain.Message) bool) ([]domain.Message, error) {
	msgs, err := s.Store.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(msgs, func(m domain.Message) bool { return !keep(m) }), nil
}

// MessageStats counts cumulatively: Sent includes delivered and read
// messages, Delivered includes read ones. Rates are percentages of Total.
type MessageStats struct {
	Total        int            `json:"total"`
	Sent         int            `json:"sent"`
	Delivered    int            `json:"delivered"`
	Read         int            `json:"read"`
	Failed       int            `json:"failed"`
	DeliveryRate float64        `json:"deliveryRate"`
	ReadRate     float64        `json:"readRate"`
	ByType       map[string]int `json:"byType"`
}

func (s *MessagingService) Stats(ctx context.Context) (MessageStats, error) {
	msgs, err := s.Store.ListMessages(ctx)
	if err != nil {
		return MessageStats{}, err
	}
	return countMessages(msgs), nil
}

func countMessages(msgs []domain.Message) MessageStats {
	st := MessageStats{Total: len(msgs), ByType: map[string]int{}}
	for _, m := range msgs {
		st.ByType[string(m.Type)]++
		switch m.Status {
		case domain.StatusSent:
			st.Sent++
		case domain.StatusDelivered:
			st.Sent++
			st.Delivered++
		case domain.StatusRead:
			st.Sent++
			st.Delivered++
			st.Read++
		case domain.StatusFailed:
			st.Failed++
		}
	}
	st.DeliveryRate = report.Percent(st.Delivered, st.Total)
	st.ReadRate = report.Percent(st.Read, st.Total)
	return st
}

// ApplyStatus records an authoritative status for a message, overriding
// any simulated transition still pending.
func (s *MessagingService) ApplyStatus(ctx context.Context, id int64, status domain.MessageStatus, lastError string) (domain.Message, error) {
	return s.Sender.Apply(ctx, id, status, lastError)
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
