package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/importer"
	"rsvpdash/internal/observability"
	"rsvpdash/internal/store"
)

type ContactStore interface {
	ListContactLists(ctx context.Context, opts store.ListOptions) ([]domain.ContactList, error)
	GetContactList(ctx context.Context, id int64, opts store.ListOptions) (domain.ContactList, error)
	InsertContactList(ctx context.Context, in store.ContactListInsert) (domain.ContactList, error)
	UpdateContactList(ctx context.Context, id int64, now time.Time, fn func(*domain.ContactList) error) (domain.ContactList, error)
	SoftDeleteContactList(ctx context.Context, id int64, now time.Time) error
	PruneListFromEvents(ctx context.Context, listID int64, now time.Time) (int, error)

	ListContacts(ctx context.Context, opts store.ListOptions) ([]domain.Contact, error)
	ListDeletedContacts(ctx context.Context) ([]domain.Contact, error)
	ListContactsByList(ctx context.Context, listID int64, opts store.ListOptions) ([]domain.Contact, error)
	GetContact(ctx context.Context, id int64, opts store.ListOptions) (domain.Contact, error)
	InsertContacts(ctx context.Context, in store.ContactInsert) ([]domain.Contact, error)
	UpdateContact(ctx context.Context, id int64, now time.Time, fn func(*domain.Contact) error) (domain.Contact, error)
	SoftDeleteContact(ctx context.Context, id int64, now time.Time) error
	RestoreContact(ctx context.Context, id int64, now time.Time) (domain.Contact, error)
}

type ContactService struct {
	Store    ContactStore
	Notifier Notifier
	Now      func() time.Time
}

// Lists

func (s *ContactService) Lists(ctx context.Context) ([]domain.ContactList, error) {
	return s.Store.ListContactLists(ctx, store.ListOptions{})
}

func (s *ContactService) GetList(ctx context.Context, id int64) (domain.ContactList, error) {
	return s.Store.GetContactList(ctx, id, store.ListOptions{})
}

func (s *ContactService) CreateList(ctx context.Context, in domain.ContactListInput) (domain.ContactList, error) {
	if err := in.Validate(); err != nil {
		return domain.ContactList{}, notifyErr(ctx, s.Notifier, "list not created", err)
	}
	l, err := s.Store.InsertContactList(ctx, store.ContactListInsert{Input: in, Now: nowOr(s.Now)})
	if err != nil {
		return domain.ContactList{}, notifyErr(ctx, s.Notifier, "list not created", err)
	}
	notifierOr(s.Notifier).Success(ctx, fmt.Sprintf("list %q created", l.Name))
	return l, nil
}

func (s *ContactService) UpdateList(ctx context.Context, id int64, in domain.ContactListInput) (domain.ContactList, error) {
	if err := in.Validate(); err != nil {
		return domain.ContactList{}, err
	}
	return s.Store.UpdateContactList(ctx, id, nowOr(s.Now), func(l *domain.ContactList) error {
		l.Name = strings.TrimSpace(in.Name)
		l.Description = in.Description
		if in.Tags != nil {
			l.Tags = in.Tags
		}
		return nil
	})
}

// DeleteList soft-deletes the list with its contacts and drops it from every
// event it was assigned to.
func (s *ContactService) DeleteList(ctx context.Context, id int64) error {
	now := nowOr(s.Now)
	if err := s.Store.SoftDeleteContactList(ctx, id, now); err != nil {
		return notifyErr(ctx, s.Notifier, "list not deleted", err)
	}
	pruned, err := s.Store.PruneListFromEvents(ctx, id, now)
	if err != nil {
		return err
	}
	slog.Info("contact list deleted", "list_id", id, "events_pruned", pruned)
	notifierOr(s.Notifier).Success(ctx, "list deleted")
	return nil
}

// Contacts

func (s *ContactService) ListAll(ctx context.Context) ([]domain.Contact, error) {
	return s.Store.ListContacts(ctx, store.ListOptions{})
}

func (s *ContactService) ListByList(ctx context.Context, listID int64) ([]domain.Contact, error) {
	return s.Store.ListContactsByList(ctx, listID, store.ListOptions{})
}

func (s *ContactService) ListDeleted(ctx context.Context) ([]domain.Contact, error) {
	return s.Store.ListDeletedContacts(ctx)
}

func (s *ContactService) Get(ctx context.Context, id int64) (domain.Contact, error) {
	return s.Store.GetContact(ctx, id, store.ListOptions{})
}

func (s *ContactService) Create(ctx context.Context, listID int64, in domain.ContactInput) (domain.Contact, error) {
	if err := in.Validate(); err != nil {
		return domain.Contact{}, notifyErr(ctx, s.Notifier, "contact not added", err)
	}
	out, err := s.Store.InsertContacts(ctx, store.ContactInsert{ListID: listID, Inputs: []domain.ContactInput{in}, Now: nowOr(s.Now)})
	if err != nil {
		return domain.Contact{}, notifyErr(ctx, s.Notifier, "contact not added", err)
	}
	return out[0], nil
}

// ContactUpdate changes a contact in place. ListID moves it to another
// live list when non-zero.
type ContactUpdate struct {
	domain.ContactInput
	ListID int64 `json:"listId"`
}

func (s *ContactService) Update(ctx context.Context, id int64, in ContactUpdate) (domain.Contact, error) {
	if err := in.Validate(); err != nil {
		return domain.Contact{}, err
	}
	return s.Store.UpdateContact(ctx, id, nowOr(s.Now), func(c *domain.Contact) error {
		c.Name = strings.TrimSpace(in.Name)
		c.Phone = in.Phone
		c.Email = strings.TrimSpace(in.Email)
		if in.Tags != nil {
			c.Tags = in.Tags
		}
		if in.ListID != 0 {
			c.ListID = in.ListID
		}
		return nil
	})
}

func (s *ContactService) Delete(ctx context.Context, id int64) error {
	return notifyErr(ctx, s.Notifier, "contact not deleted", s.Store.SoftDeleteContact(ctx, id, nowOr(s.Now)))
}

func (s *ContactService) Restore(ctx context.Context, id int64) (domain.Contact, error) {
	c, err := s.Store.RestoreContact(ctx, id, nowOr(s.Now))
	if err != nil {
		return domain.Contact{}, notifyErr(ctx, s.Notifier, "contact not restored", err)
	}
	notifierOr(s.Notifier).Success(ctx, fmt.Sprintf("%s restored", c.Name))
	return c, nil
}

type ImportResult struct {
	Imported []domain.Contact `json:"imported"`
	Skipped  int              `json:"skipped"`
}

// Import adds every valid row of a CSV upload to the list in one insert;
// rows missing a name or phone are counted and dropped.
func (s *ContactService) Import(ctx context.Context, listID int64, r io.Reader) (ImportResult, error) {
	if _, err := s.Store.GetContactList(ctx, listID, store.ListOptions{}); err != nil {
		return ImportResult{}, err
	}
	parsed, err := importer.Parse(r)
	if err != nil {
		observability.ImportRows.WithLabelValues("unreadable").Inc()
		return ImportResult{}, notifyErr(ctx, s.Notifier, "import failed", err)
	}
	observability.ImportRows.WithLabelValues("skipped").Add(float64(parsed.Skipped))

	res := ImportResult{Imported: []domain.Contact{}, Skipped: parsed.Skipped}
	if len(parsed.Rows) > 0 {
		res.Imported, err = s.Store.InsertContacts(ctx, store.ContactInsert{ListID: listID, Inputs: parsed.Rows, Now: nowOr(s.Now)})
		if err != nil {
			return ImportResult{}, notifyErr(ctx, s.Notifier, "import failed", err)
		}
	}
	observability.ImportRows.WithLabelValues("imported").Add(float64(len(res.Imported)))
	slog.Info("contacts imported", "list_id", listID, "imported", len(res.Imported), "skipped", res.Skipped)
	notifierOr(s.Notifier).Success(ctx, fmt.Sprintf("%d contact(s) imported, %d skipped", len(res.Imported), res.Skipped))
	return res, nil
}
