package domain

import (
	"errors"
	"testing"
)

func TestMessageStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to MessageStatus
		ok       bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusFailed, true},
		{StatusDelivered, StatusRead, true},
		{StatusSent, StatusRead, false},
		{StatusDelivered, StatusSent, false},
		{StatusDelivered, StatusFailed, false},
		{StatusRead, StatusDelivered, false},
		{StatusFailed, StatusDelivered, false},
		{StatusFailed, StatusRead, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.ok, got)
		}
	}
	if !StatusRead.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("expected read and failed to be terminal")
	}
	if StatusSent.Terminal() || StatusDelivered.Terminal() {
		t.Fatalf("expected sent and delivered to be non-terminal")
	}
}

func TestValidationErrors(t *testing.T) {
	err := CreateEventRequest{Name: "Gala", Location: "Hall A"}.Validate()
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "date" {
		t.Fatalf("expected date validation error, got %v", err)
	}
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if err := (ContactListInput{Name: "  "}).Validate(); err == nil {
		t.Fatalf("expected blank list name to fail")
	}
	if err := (ContactInput{Name: "Sam", Phone: "+1555"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (SubmitRSVPRequest{EventID: 1, Phone: "+1555", Response: "perhaps"}).Validate(); err == nil {
		t.Fatalf("expected invalid response to fail")
	}
	if err := (BulkSendRequest{EventID: 1}).Validate(); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
