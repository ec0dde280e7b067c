package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/store"
	"rsvpdash/internal/util"
)

// Store keeps every collection in process memory. Reads return copies so
// callers can never mutate stored records; soft-deleted rows are hidden
// unless store.ListOptions asks for them.
type Store struct {
	mu sync.RWMutex

	events   []domain.Event
	lists    []domain.ContactList
	contacts []domain.Contact
	messages []domain.Message
	rsvps    []domain.RSVPResponse

	lastEventID   int64
	lastListID    int64
	lastContactID int64
	lastMessageID int64
	lastRSVPID    int64
}

func New() *Store { return &Store{} }

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
}

// Events

func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.eventIndex(id)
	if i < 0 {
		return domain.Event{}, notFound("event", id)
	}
	return cloneEvent(s.events[i]), nil
}

func (s *Store) InsertEvent(ctx context.Context, in store.EventInsert) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastEventID++
	id := s.lastEventID
	req := in.Request
	eventName := req.EventName
	if eventName == "" {
		eventName = req.Name
	}
	ev := domain.Event{
		ID:              id,
		Name:            strings.TrimSpace(req.Name),
		EventName:       strings.TrimSpace(eventName),
		Date:            strings.TrimSpace(req.Date),
		Location:        strings.TrimSpace(req.Location),
		Description:     req.Description,
		WebsiteLink:     req.WebsiteLink,
		MessageTemplate: req.MessageTemplate,
		Status:          domain.EventDraft,
		RSVPFormURL:     strings.TrimRight(in.RSVPBaseURL, "/") + "/" + strconv.FormatInt(id, 10),
		ContactListIDs:  []int64{},
		Reminders:       domain.DefaultReminderSettings(),
		CreatedAt:       in.Now,
	}
	s.events = append(s.events, ev)
	return cloneEvent(ev), nil
}

// UpdateEvent applies fn to the stored event under the write lock. If fn
// returns an error nothing is changed.
func (s *Store) UpdateEvent(ctx context.Context, id int64, now time.Time, fn func(*domain.Event) error) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.eventIndex(id)
	if i < 0 {
		return domain.Event{}, notFound("event", id)
	}
	ev := cloneEvent(s.events[i])
	if err := fn(&ev); err != nil {
		return domain.Event{}, err
	}
	ev.ID = id
	ev.UpdatedAt = &now
	s.events[i] = ev
	return cloneEvent(ev), nil
}

// PruneListFromEvents removes listID from every event's assigned lists and
// returns how many events referenced it.
func (s *Store) PruneListFromEvents(ctx context.Context, listID int64, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.events {
		ev := &s.events[i]
		if !ev.HasList(listID) {
			continue
		}
		ev.ContactListIDs = slices.DeleteFunc(slices.Clone(ev.ContactListIDs), func(id int64) bool { return id == listID })
		t := now
		ev.UpdatedAt = &t
		n++
	}
	return n, nil
}

// Contact lists

func (s *Store) ListContactLists(ctx context.Context, opts store.ListOptions) ([]domain.ContactList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ContactList, 0, len(s.lists))
	for _, l := range s.lists {
		if l.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		out = append(out, cloneList(l))
	}
	return out, nil
}

func (s *Store) GetContactList(ctx context.Context, id int64, opts store.ListOptions) (domain.ContactList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.listIndex(id, opts)
	if i < 0 {
		return domain.ContactList{}, notFound("contact list", id)
	}
	return cloneList(s.lists[i]), nil
}

func (s *Store) InsertContactList(ctx context.Context, in store.ContactListInsert) (domain.ContactList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastListID++
	l := domain.ContactList{
		ID:          s.lastListID,
		Name:        strings.TrimSpace(in.Input.Name),
		Description: in.Input.Description,
		Tags:        cleanTags(in.Input.Tags),
		CreatedAt:   in.Now,
	}
	s.lists = append(s.lists, l)
	return cloneList(l), nil
}

// UpdateContactList applies fn to a live list. ContactCount is always
// recomputed afterwards so fn cannot make it drift.
func (s *Store) UpdateContactList(ctx context.Context, id int64, now time.Time, fn func(*domain.ContactList) error) (domain.ContactList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.listIndex(id, store.ListOptions{})
	if i < 0 {
		return domain.ContactList{}, notFound("contact list", id)
	}
	l := cloneList(s.lists[i])
	if err := fn(&l); err != nil {
		return domain.ContactList{}, err
	}
	l.ID = id
	l.UpdatedAt = &now
	s.lists[i] = l
	s.recount(id)
	return cloneList(s.lists[i]), nil
}

// SoftDeleteContactList marks the list and its live contacts deleted.
func (s *Store) SoftDeleteContactList(ctx context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.listIndex(id, store.ListOptions{})
	if i < 0 {
		return notFound("contact list", id)
	}
	s.lists[i].IsDeleted = true
	s.lists[i].DeletedAt = &now
	for j := range s.contacts {
		c := &s.contacts[j]
		if c.ListID == id && !c.IsDeleted {
			c.IsDeleted = true
			t := now
			c.DeletedAt = &t
		}
	}
	s.recount(id)
	return nil
}

// Contacts

func (s *Store) ListContacts(ctx context.Context, opts store.ListOptions) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if c.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		out = append(out, cloneContact(c))
	}
	return out, nil
}

func (s *Store) ListDeletedContacts(ctx context.Context) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Contact
	for _, c := range s.contacts {
		if c.IsDeleted {
			out = append(out, cloneContact(c))
		}
	}
	return out, nil
}

func (s *Store) ListContactsByList(ctx context.Context, listID int64, opts store.ListOptions) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listIndex(listID, opts) < 0 {
		return nil, notFound("contact list", listID)
	}
	out := []domain.Contact{}
	for _, c := range s.contacts {
		if c.ListID != listID || (c.IsDeleted && !opts.IncludeDeleted) {
			continue
		}
		out = append(out, cloneContact(c))
	}
	return out, nil
}

func (s *Store) GetContact(ctx context.Context, id int64, opts store.ListOptions) (domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.contactIndex(id, opts)
	if i < 0 {
		return domain.Contact{}, notFound("contact", id)
	}
	return cloneContact(s.contacts[i]), nil
}

// InsertContacts appends all inputs to a live list in order and recounts
// the list once.
func (s *Store) InsertContacts(ctx context.Context, in store.ContactInsert) ([]domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listIndex(in.ListID, store.ListOptions{}) < 0 {
		return nil, notFound("contact list", in.ListID)
	}
	out := make([]domain.Contact, 0, len(in.Inputs))
	for _, input := range in.Inputs {
		s.lastContactID++
		c := domain.Contact{
			ID:        s.lastContactID,
			Name:      strings.TrimSpace(input.Name),
			Phone:     strings.TrimSpace(input.Phone),
			Email:     strings.TrimSpace(input.Email),
			Tags:      cleanTags(input.Tags),
			ListID:    in.ListID,
			CreatedAt: in.Now,
		}
		s.contacts = append(s.contacts, c)
		out = append(out, cloneContact(c))
	}
	s.recount(in.ListID)
	return out, nil
}

func (s *Store) UpdateContact(ctx context.Context, id int64, now time.Time, fn func(*domain.Contact) error) (domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.contactIndex(id, store.ListOptions{})
	if i < 0 {
		return domain.Contact{}, notFound("contact", id)
	}
	c := cloneContact(s.contacts[i])
	oldList := c.ListID
	if err := fn(&c); err != nil {
		return domain.Contact{}, err
	}
	if c.ListID != oldList && s.listIndex(c.ListID, store.ListOptions{}) < 0 {
		return domain.Contact{}, notFound("contact list", c.ListID)
	}
	c.ID = id
	c.Phone = strings.TrimSpace(c.Phone)
	c.UpdatedAt = &now
	s.contacts[i] = c
	s.recount(oldList)
	s.recount(c.ListID)
	return cloneContact(c), nil
}

func (s *Store) SoftDeleteContact(ctx context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.contactIndex(id, store.ListOptions{})
	if i < 0 {
		return notFound("contact", id)
	}
	s.contacts[i].IsDeleted = true
	s.contacts[i].DeletedAt = &now
	s.recount(s.contacts[i].ListID)
	return nil
}

// RestoreContact revives a soft-deleted contact. Its list must still be live.
func (s *Store) RestoreContact(ctx context.Context, id int64, now time.Time) (domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.contactIndex(id, store.ListOptions{IncludeDeleted: true})
	if i < 0 {
		return domain.Contact{}, notFound("contact", id)
	}
	c := &s.contacts[i]
	if s.listIndex(c.ListID, store.ListOptions{}) < 0 {
		return domain.Contact{}, notFound("contact list", c.ListID)
	}
	if c.IsDeleted {
		c.IsDeleted = false
		c.DeletedAt = nil
		c.RestoredAt = &now
		s.recount(c.ListID)
	}
	return cloneContact(*c), nil
}

// Messages

func (s *Store) ListMessages(ctx context.Context) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.messageIndex(id)
	if i < 0 {
		return domain.Message{}, notFound("message", id)
	}
	return cloneMessage(s.messages[i]), nil
}

// InsertMessages creates one sent message per recipient, in recipient order.
func (s *Store) InsertMessages(ctx context.Context, in store.MessageInsert) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, 0, len(in.Recipients))
	for _, r := range in.Recipients {
		s.lastMessageID++
		m := domain.Message{
			ID:        s.lastMessageID,
			ContactID: r.ContactID,
			EventID:   in.EventID,
			Content:   r.Content,
			Type:      in.Type,
			Status:    domain.StatusSent,
			SentAt:    in.Now,
			BatchID:   in.BatchID,
		}
		s.messages = append(s.messages, m)
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// TransitionMessage enforces the message state machine; anything other than
// sent->delivered->read or sent->failed returns domain.ErrInvalidTransition.
func (s *Store) TransitionMessage(ctx context.Context, tr store.MessageTransition) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.messageIndex(tr.ID)
	if i < 0 {
		return domain.Message{}, notFound("message", tr.ID)
	}
	m := &s.messages[i]
	if !m.Status.CanTransition(tr.To) {
		return cloneMessage(*m), fmt.Errorf("message %d %s -> %s: %w", tr.ID, m.Status, tr.To, domain.ErrInvalidTransition)
	}
	now := tr.Now
	m.Status = tr.To
	switch tr.To {
	case domain.StatusDelivered:
		m.DeliveredAt = &now
	case domain.StatusRead:
		m.ReadAt = &now
	case domain.StatusFailed:
		m.Error = tr.LastError
		if m.Error == "" {
			m.Error = "delivery failed"
		}
	}
	return cloneMessage(*m), nil
}

// RSVPs

func (s *Store) ListRSVPs(ctx context.Context) ([]domain.RSVPResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rsvps), nil
}

// UpsertRSVP keeps at most one response per (phone, event), matching phones
// by util.PhoneKey. The first submission's phone is kept as entered. It
// reports whether a new response was created.
func (s *Store) UpsertRSVP(ctx context.Context, in store.RSVPUpsert) (domain.RSVPResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := in.Request
	key := util.PhoneKey(req.Phone)
	for i := range s.rsvps {
		r := &s.rsvps[i]
		if util.PhoneKey(r.Phone) == key && r.EventID == req.EventID {
			r.Response = req.Response
			r.Notes = req.Notes
			if req.Name != "" {
				r.Name = req.Name
			}
			r.SubmittedAt = in.Now
			return *r, false, nil
		}
	}
	s.lastRSVPID++
	r := domain.RSVPResponse{
		ID:          s.lastRSVPID,
		EventID:     req.EventID,
		Phone:       strings.TrimSpace(req.Phone),
		Name:        req.Name,
		Response:    req.Response,
		Notes:       req.Notes,
		SubmittedAt: in.Now,
	}
	s.rsvps = append(s.rsvps, r)
	return r, true, nil
}

// Snapshot copies events, contacts (including deleted), messages and RSVPs
// under one read lock.
func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := store.Snapshot{
		Events:   make([]domain.Event, 0, len(s.events)),
		Contacts: make([]domain.Contact, 0, len(s.contacts)),
		Messages: make([]domain.Message, 0, len(s.messages)),
		RSVPs:    slices.Clone(s.rsvps),
	}
	for _, e := range s.events {
		snap.Events = append(snap.Events, cloneEvent(e))
	}
	for _, c := range s.contacts {
		snap.Contacts = append(snap.Contacts, cloneContact(c))
	}
	for _, m := range s.messages {
		snap.Messages = append(snap.Messages, cloneMessage(m))
	}
	return snap, nil
}

// recount derives ContactCount from live membership. Callers hold mu.
func (s *Store) recount(listID int64) {
	i := s.listIndex(listID, store.ListOptions{IncludeDeleted: true})
	if i < 0 {
		return
	}
	n := 0
	for _, c := range s.contacts {
		if c.ListID == listID && !c.IsDeleted {
			n++
		}
	}
	s.lists[i].ContactCount = n
}

func (s *Store) eventIndex(id int64) int {
	return slices.IndexFunc(s.events, func(e domain.Event) bool { return e.ID == id })
}

func (s *Store) listIndex(id int64, opts store.ListOptions) int {
	return slices.IndexFunc(s.lists, func(l domain.ContactList) bool {
		return l.ID == id && (opts.IncludeDeleted || !l.IsDeleted)
	})
}

func (s *Store) contactIndex(id int64, opts store.ListOptions) int {
	return slices.IndexFunc(s.contacts, func(c domain.Contact) bool {
		return c.ID == id && (opts.IncludeDeleted || !c.IsDeleted)
	})
}

func (s *Store) messageIndex(id int64) int {
	return slices.IndexFunc(s.messages, func(m domain.Message) bool { return m.ID == id })
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func cloneEvent(e domain.Event) domain.Event {
	e.ContactListIDs = slices.Clone(e.ContactListIDs)
	if e.ContactListIDs == nil {
		e.ContactListIDs = []int64{}
	}
	return e
}

func cloneList(l domain.ContactList) domain.ContactList {
	l.Tags = slices.Clone(l.Tags)
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return l
}

func cloneContact(c domain.Contact) domain.Contact {
	c.Tags = slices.Clone(c.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

func cloneMessage(m domain.Message) domain.Message {
	if m.DeliveredAt != nil {
		t := *m.DeliveredAt
		m.DeliveredAt = &t
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		m.ReadAt = &t
	}
	return m
}
