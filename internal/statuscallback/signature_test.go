package statuscallback

import (
	"net/url"
	"testing"
)

const callbackURL = "https://dash.example.com/v1/webhooks/status"

func form() url.Values {
	return url.Values{
		FieldMessageID: {"12"},
		FieldStatus:    {"delivered"},
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	sig := Sign("secret", callbackURL, form())
	if !Verify("secret", callbackURL, sig, form()) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejects(t *testing.T) {
	sig := Sign("secret", callbackURL, form())

	tampered := form()
	tampered.Set(FieldStatus, "read")
	tests := map[string]bool{
		"wrong token":   Verify("other", callbackURL, sig, form()),
		"wrong url":     Verify("secret", callbackURL+"?x=1", sig, form()),
		"tampered form": Verify("secret", callbackURL, sig, tampered),
		"empty sig":     Verify("secret", callbackURL, "", form()),
		"empty token":   Verify("", callbackURL, Sign("", callbackURL, form()), form()),
	}
	for name, ok := range tests {
		if ok {
			t.Fatalf("%s: expected verification to fail", name)
		}
	}
}

func TestSignIgnoresKeyOrder(t *testing.T) {
	a := url.Values{}
	a.Set("b", "2")
	a.Set("a", "1")
	b := url.Values{}
	b.Set("a", "1")
	b.Set("b", "2")
	if Sign("k", callbackURL, a) != Sign("k", callbackURL, b) {
		t.Fatalf("expected signature independent of insertion order")
	}
}
