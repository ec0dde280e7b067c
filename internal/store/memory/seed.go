package memory

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/util"
)

//go:embed fixtures/*.json
var fixtureFS embed.FS

type Fixtures struct {
	Events       []domain.Event
	ContactLists []domain.ContactList
	Contacts     []domain.Contact
	Messages     []domain.Message
	RSVPs        []domain.RSVPResponse
}

// LoadFixtures reads the bundled fixture files.
func LoadFixtures() (Fixtures, error) {
	return ReadFixtures(fixtureFS, "fixtures")
}

// ReadFixtures decodes events.json, contact_lists.json, contacts.json,
// messages.json and rsvp_responses.json from dir.
func ReadFixtures(fsys fs.FS, dir string) (Fixtures, error) {
	var f Fixtures
	files := []struct {
		name string
		dst  any
	}{
		{"events.json", &f.Events},
		{"contact_lists.json", &f.ContactLists},
		{"contacts.json", &f.Contacts},
		{"messages.json", &f.Messages},
		{"rsvp_responses.json", &f.RSVPs},
	}
	for _, file := range files {
		b, err := fs.ReadFile(fsys, dir+"/"+file.name)
		if err != nil {
			return Fixtures{}, fmt.Errorf("read fixture %s: %w", file.name, err)
		}
		if err := json.Unmarshal(b, file.dst); err != nil {
			return Fixtures{}, fmt.Errorf("decode fixture %s: %w", file.name, err)
		}
	}
	return f, nil
}

// Seed replaces the store contents with f. Contact counts are recomputed
// from membership rather than trusted from the fixture.
func (s *Store) Seed(ctx context.Context, f Fixtures) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.lists = nil
	s.contacts = nil
	s.messages = nil
	s.rsvps = nil
	s.lastEventID, s.lastListID, s.lastContactID, s.lastMessageID, s.lastRSVPID = 0, 0, 0, 0, 0

	for _, e := range f.Events {
		if e.Status == "" {
			e.Status = domain.EventDraft
		}
		s.events = append(s.events, cloneEvent(e))
		s.lastEventID = max(s.lastEventID, e.ID)
	}
	for _, l := range f.ContactLists {
		s.lists = append(s.lists, cloneList(l))
		s.lastListID = max(s.lastListID, l.ID)
	}
	for _, c := range f.Contacts {
		s.contacts = append(s.contacts, cloneContact(c))
		s.lastContactID = max(s.lastContactID, c.ID)
	}
	for _, m := range f.Messages {
		if !m.Status.Valid() {
			return fmt.Errorf("fixture message %d: unknown status %q", m.ID, m.Status)
		}
		s.messages = append(s.messages, cloneMessage(m))
		s.lastMessageID = max(s.lastMessageID, m.ID)
	}
	seen := make(map[string]bool, len(f.RSVPs))
	for _, r := range f.RSVPs {
		key := fmt.Sprintf("%s/%d", util.PhoneKey(r.Phone), r.EventID)
		if seen[key] {
			return fmt.Errorf("fixture rsvp %d: duplicate response for phone %s event %d", r.ID, r.Phone, r.EventID)
		}
		seen[key] = true
		s.rsvps = append(s.rsvps, r)
		s.lastRSVPID = max(s.lastRSVPID, r.ID)
	}
	for _, l := range s.lists {
		s.recount(l.ID)
	}
	return nil
}
