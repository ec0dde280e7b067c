package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/store"
)

type EventStore interface {
	ListEvents(ctx context.Context) ([]domain.Event, error)
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	InsertEvent(ctx context.Context, in store.EventInsert) (domain.Event, error)
	UpdateEvent(ctx context.Context, id int64, now time.Time, fn func(*domain.Event) error) (domain.Event, error)
	ListContactLists(ctx context.Context, opts store.ListOptions) ([]domain.ContactList, error)
	GetContactList(ctx context.Context, id int64, opts store.ListOptions) (domain.ContactList, error)
	ListMessages(ctx context.Context) ([]domain.Message, error)
	ListRSVPs(ctx context.Context) ([]domain.RSVPResponse, error)
}

type EventService struct {
	Store       EventStore
	Notifier    Notifier
	RSVPBaseURL string
	Now         func() time.Time
}

func (s *EventService) List(ctx context.Context) ([]domain.Event, error) {
	return s.Store.ListEvents(ctx)
}

func (s *EventService) Get(ctx context.Context, id int64) (domain.Event, error) {
	return s.Store.GetEvent(ctx, id)
}

func (s *EventService) Create(ctx context.Context, req domain.CreateEventRequest) (domain.Event, error) {
	if err := req.Validate(); err != nil {
		return domain.Event{}, notifyErr(ctx, s.Notifier, "event not created", err)
	}
	ev, err := s.Store.InsertEvent(ctx, store.EventInsert{Request: req, RSVPBaseURL: s.RSVPBaseURL, Now: nowOr(s.Now)})
	if err != nil {
		return domain.Event{}, notifyErr(ctx, s.Notifier, "event not created", err)
	}
	notifierOr(s.Notifier).Success(ctx, fmt.Sprintf("event %q created", ev.DisplayName()))
	return ev, nil
}

// Update applies the non-nil fields of req.
func (s *EventService) Update(ctx context.Context, id int64, req domain.UpdateEventRequest) (domain.Event, error) {
	if err := req.Validate(); err != nil {
		return domain.Event{}, err
	}
	return s.Store.UpdateEvent(ctx, id, nowOr(s.Now), func(ev *domain.Event) error {
		set(&ev.Name, req.Name)
		set(&ev.EventName, req.EventName)
		set(&ev.Date, req.Date)
		set(&ev.Location, req.Location)
		set(&ev.Description, req.Description)
		set(&ev.WebsiteLink, req.WebsiteLink)
		set(&ev.MessageTemplate, req.MessageTemplate)
		if req.Status != nil {
			ev.Status = *req.Status
		}
		return nil
	})
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// AssignLists adds live lists to the event. Ids already assigned are kept
// once; an unknown or deleted list fails the whole call.
func (s *EventService) AssignLists(ctx context.Context, id int64, listIDs []int64) (domain.Event, error) {
	if len(listIDs) == 0 {
		return domain.Event{}, domain.ValidationError{Field: "listIds"}
	}
	for _, lid := range listIDs {
		if _, err := s.Store.GetContactList(ctx, lid, store.ListOptions{}); err != nil {
			return domain.Event{}, err
		}
	}
	ev, err := s.Store.UpdateEvent(ctx, id, nowOr(s.Now), func(ev *domain.Event) error {
		for _, lid := range listIDs {
			if !ev.HasList(lid) {
				ev.ContactListIDs = append(ev.ContactListIDs, lid)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Event{}, notifyErr(ctx, s.Notifier, "lists not assigned", err)
	}
	notifierOr(s.Notifier).Success(ctx, fmt.Sprintf("%d list(s) assigned to %q", len(listIDs), ev.DisplayName()))
	return ev, nil
}

func (s *EventService) UnassignList(ctx context.Context, id, listID int64) (domain.Event, error) {
	return s.Store.UpdateEvent(ctx, id, nowOr(s.Now), func(ev *domain.Event) error {
		if !ev.HasList(listID) {
			return fmt.Errorf("list %d on event %d: %w", listID, id, domain.ErrNotFound)
		}
		ev.ContactListIDs = slices.DeleteFunc(ev.ContactListIDs, func(l int64) bool { return l == listID })
		return nil
	})
}

// AvailableLists returns live lists not yet assigned to the event.
func (s *EventService) AvailableLists(ctx context.Context, id int64) ([]domain.ContactList, error) {
	ev, err := s.Store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	lists, err := s.Store.ListContactLists(ctx, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(lists, func(l domain.ContactList) bool { return ev.HasList(l.ID) }), nil
}

func (s *EventService) Reminders(ctx context.Context, id int64) (domain.ReminderSettings, error) {
	ev, err := s.Store.GetEvent(ctx, id)
	if err != nil {
		return domain.ReminderSettings{}, err
	}
	return ev.Reminders, nil
}

func (s *EventService) SaveReminders(ctx context.Context, id int64, rs domain.ReminderSettings) (domain.ReminderSettings, error) {
	if err := rs.Validate(); err != nil {
		return domain.ReminderSettings{}, err
	}
	ev, err := s.Store.UpdateEvent(ctx, id, nowOr(s.Now), func(ev *domain.Event) error {
		ev.Reminders = rs
		return nil
	})
	if err != nil {
		return domain.ReminderSettings{}, err
	}
	return ev.Reminders, nil
}

type EventStats struct {
	EventID  int64        `json:"eventId"`
	Messages MessageStats `json:"messages"`
	RSVPs    RSVPStats    `json:"rsvps"`
	Lists    int          `json:"lists"`
}

// Stats summarizes messages and RSVPs recorded against one event.
func (s *EventService) Stats(ctx context.Context, id int64) (EventStats, error) {
	ev, err := s.Store.GetEvent(ctx, id)
	if err != nil {
		return EventStats{}, err
	}
	msgs, err := s.Store.ListMessages(ctx)
	if err != nil {
		return EventStats{}, err
	}
	rsvps, err := s.Store.ListRSVPs(ctx)
	if err != nil {
		return EventStats{}, err
	}
	msgs = slices.DeleteFunc(msgs, func(m domain.Message) bool { return m.EventID != id })
	rsvps = slices.DeleteFunc(rsvps, func(r domain.RSVPResponse) bool { return r.EventID != id })

	return EventStats{
		EventID:  id,
		Messages: countMessages(msgs),
		RSVPs:    countRSVPs(rsvps),
		Lists:    len(ev.ContactListIDs),
	}, nil
}
