package domain

import (
	"errors"
	"strings"
	"time"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
)

type MessageType string

const (
	MessageInvitation MessageType = "invitation"
	MessageReminder   MessageType = "reminder"
)

type RSVPAnswer string

const (
	RSVPYes   RSVPAnswer = "yes"
	RSVPNo    RSVPAnswer = "no"
	RSVPMaybe RSVPAnswer = "maybe"
)

// StatusPending is reported for contacts without a message or RSVP.
const StatusPending = "pending"

// FilterAll matches every value of a categorical filter.
const FilterAll = "all"

type ReminderSettings struct {
	MaxReminders     int    `json:"maxReminders"`
	MaxDurationValue int    `json:"maxDurationValue"`
	MaxDurationType  string `json:"maxDurationType"`
	OverrideGlobal   bool   `json:"overrideGlobal"`
}

func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{MaxReminders: 3, MaxDurationValue: 24, MaxDurationType: "hours"}
}

func (r ReminderSettings) Validate() error {
	if r.MaxReminders < 0 {
		return ValidationError{Field: "maxReminders"}
	}
	if r.MaxDurationValue < 0 {
		return ValidationError{Field: "maxDurationValue"}
	}
	switch r.MaxDurationType {
	case "hours", "days":
		return nil
	}
	return ValidationError{Field: "maxDurationType"}
}

// Window is how long after the first invitation reminders may still go out.
// Zero means no limit.
func (r ReminderSettings) Window() time.Duration {
	unit := time.Hour
	if r.MaxDurationType == "days" {
		unit = 24 * time.Hour
	}
	return time.Duration(r.MaxDurationValue) * unit
}

type Event struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	EventName       string           `json:"eventName"`
	Date            string           `json:"date"`
	Location        string           `json:"location"`
	Description     string           `json:"description,omitempty"`
	WebsiteLink     string           `json:"websiteLink,omitempty"`
	MessageTemplate string           `json:"messageTemplate,omitempty"`
	Status          EventStatus      `json:"status"`
	RSVPFormURL     string           `json:"rsvpFormUrl"`
	ContactListIDs  []int64          `json:"contactListIds"`
	Reminders       ReminderSettings `json:"reminders"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty"`
}

// DisplayName falls back to the internal name when no display name was set.
func (e Event) DisplayName() string {
	if e.EventName != "" {
		return e.EventName
	}
	return e.Name
}

func (e Event) HasList(listID int64) bool {
	for _, id := range e.ContactListIDs {
		if id == listID {
			return true
		}
	}
	return false
}

type ContactList struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Tags         []string   `json:"tags"`
	ContactCount int        `json:"contactCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	IsDeleted    bool       `json:"isDeleted"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

type Contact struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email,omitempty"`
	Tags       []string   `json:"tags"`
	ListID     int64      `json:"listId"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	IsDeleted  bool       `json:"isDeleted"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	RestoredAt *time.Time `json:"restoredAt,omitempty"`
}

type Message struct {
	ID          int64         `json:"id"`
	ContactID   int64         `json:"contactId"`
	EventID     int64         `json:"eventId"`
	Content     string        `json:"content"`
	Type        MessageType   `json:"messageType"`
	Status      MessageStatus `json:"status"`
	SentAt      time.Time     `json:"sentAt"`
	DeliveredAt *time.Time    `json:"deliveredAt"`
	ReadAt      *time.Time    `json:"readAt"`
	Error       string        `json:"error,omitempty"`
	BatchID     string        `json:"batchId,omitempty"`
}

type RSVPResponse struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"eventId"`
	Phone       string     `json:"phone"`
	Name        string     `json:"name,omitempty"`
	Response    RSVPAnswer `json:"response"`
	Notes       string     `json:"notes,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
}

type CreateEventRequest struct {
	Name            string `json:"name"`
	EventName       string `json:"eventName"`
	Date            string `json:"date"`
	Location        string `json:"location"`
	Description     string `json:"description"`
	WebsiteLink     string `json:"websiteLink"`
	MessageTemplate string `json:"messageTemplate"`
}

func (r CreateEventRequest) Validate() error {
	return requireFields(map[string]string{"name": r.Name, "date": r.Date, "location": r.Location})
}

// UpdateEventRequest carries a partial update; nil fields are left unchanged.
type UpdateEventRequest struct {
	Name            *string      `json:"name"`
	EventName       *string      `json:"eventName"`
	Date            *string      `json:"date"`
	Location        *string      `json:"location"`
	Description     *string      `json:"description"`
	WebsiteLink     *string      `json:"websiteLink"`
	MessageTemplate *string      `json:"messageTemplate"`
	Status          *EventStatus `json:"status"`
}

func (r UpdateEventRequest) Validate() error {
	for field, v := range map[string]*string{"name": r.Name, "date": r.Date, "location": r.Location} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return ValidationError{Field: field}
		}
	}
	if r.Status != nil && !r.Status.Valid() {
		return ValidationError{Field: "status"}
	}
	return nil
}

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventActive, EventCompleted:
		return true
	}
	return false
}

type ContactListInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (r ContactListInput) Validate() error {
	return requireFields(map[string]string{"name": r.Name})
}

type ContactInput struct {
	Name  string   `json:"name"`
	Phone string   `json:"phone"`
	Email string   `json:"email"`
	Tags  []string `json:"tags"`
}

func (r ContactInput) Validate() error {
	return requireFields(map[string]string{"name": r.Name, "phone": r.Phone})
}

type SubmitRSVPRequest struct {
	EventID  int64      `json:"eventId"`
	Phone    string     `json:"phone"`
	Name     string     `json:"name"`
	Response RSVPAnswer `json:"response"`
	Notes    string     `json:"notes"`
}

func (r SubmitRSVPRequest) Validate() error {
	if r.EventID == 0 {
		return ValidationError{Field: "eventId"}
	}
	if strings.TrimSpace(r.Phone) == "" {
		return ValidationError{Field: "phone"}
	}
	if !r.Response.Valid() {
		return ValidationError{Field: "response"}
	}
	return nil
}

func (a RSVPAnswer) Valid() bool {
	switch a {
	case RSVPYes, RSVPNo, RSVPMaybe:
		return true
	}
	return false
}

type SendMessagesRequest struct {
	ContactIDs []int64 `json:"contactIds"`
	// Content overrides the event template when set. Placeholders are rendered per contact.
	Content string `json:"content"`
}

type Recipient struct {
	ContactID int64
	Content   string
}

type BulkSendRequest struct {
	EventID    int64
	Recipients []Recipient
	Type       MessageType
}

func (r BulkSendRequest) Validate() error {
	if r.EventID == 0 {
		return ValidationError{Field: "eventId"}
	}
	if len(r.Recipients) == 0 {
		return ErrNoRecipients
	}
	return nil
}

type SendResult struct {
	BatchID  string    `json:"batchId"`
	Messages []Message `json:"messages"`
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"name", "phone", "date", "location"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			return ValidationError{Field: name}
		}
	}
	return nil
}

var (
	ErrNotFound                = errors.New("not found")
	ErrMissingFields           = errors.New("missing required fields")
	ErrNoRecipients            = errors.New("no recipients")
	ErrImportFormat            = errors.New("invalid import format")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrInvalidTransition       = errors.New("invalid status transition")
)

// ValidationError reports a required field that was missing or empty.
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string { return ErrMissingFields.Error() + ": " + e.Field }
func (e ValidationError) Unwrap() error { return ErrMissingFields }
