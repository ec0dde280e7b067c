package store

import (
	"time"

	"rsvpdash/internal/domain"
)

// ListOptions controls soft-delete visibility. The zero value returns live
// records only.
type ListOptions struct {
	IncludeDeleted bool
}

type EventInsert struct {
	Request     domain.CreateEventRequest
	RSVPBaseURL string
	Now         time.Time
}

type ContactListInsert struct {
	Input domain.ContactListInput
	Now   time.Time
}

type ContactInsert struct {
	ListID int64
	Inputs []domain.ContactInput
	Now    time.Time
}

type MessageInsert struct {
	EventID    int64
	BatchID    string
	Type       domain.MessageType
	Recipients []domain.Recipient
	Now        time.Time
}

// MessageTransition moves a message along its status state machine.
type MessageTransition struct {
	ID        int64
	To        domain.MessageStatus
	LastError string
	Now       time.Time
}

type RSVPUpsert struct {
	Request domain.SubmitRSVPRequest
	Now     time.Time
}

// Snapshot is a consistent copy of the collections the report joins.
type Snapshot struct {
	Events   []domain.Event
	Contacts []domain.Contact
	Messages []domain.Message
	RSVPs    []domain.RSVPResponse
}
