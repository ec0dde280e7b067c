package util

import (
	"strings"
	"testing"

	"rsvpdash/internal/domain"
)

func TestRenderTemplate(t *testing.T) {
	ctx := TemplateContext{Name: "Sam", Event: "Gala", Date: "2024-05-01", Location: "Hall A", Link: "http://x/1"}
	got := RenderTemplate("Hi {Name}, join {Event} on {Date} at {Location}: {link}", ctx)
	want := "Hi Sam, join Gala on 2024-05-01 at Hall A: http://x/1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderTemplateReplacesAllOccurrences(t *testing.T) {
	got := RenderTemplate("{Name} {Name} {Name}", TemplateContext{Name: "Ana"})
	if got != "Ana Ana Ana" {
		t.Fatalf("expected every token replaced, got %q", got)
	}
}

func TestRenderTemplateLeavesUnknownTokens(t *testing.T) {
	in := "Hello {name} {Guest} {LINK} {"
	if got := RenderTemplate(in, TemplateContext{Name: "x", Link: "y"}); got != in {
		t.Fatalf("expected unknown tokens untouched, got %q", got)
	}
}

func TestRenderTemplateIdempotent(t *testing.T) {
	ctx := TemplateContext{Name: "Sam", Event: "Gala", Date: "d", Location: "l", Link: "k"}
	templates := []string{
		"",
		"no tokens here",
		"{Name}{Event}{Date}{Location}{link}",
		"Dear {Name}, see {link} or {link}",
	}
	for _, tpl := range templates {
		once := RenderTemplate(tpl, ctx)
		for _, p := range Placeholders {
			if strings.Contains(once, p) {
				t.Fatalf("token %s left in %q", p, once)
			}
		}
		if twice := RenderTemplate(once, ctx); twice != once {
			t.Fatalf("expected idempotent render, got %q then %q", once, twice)
		}
	}
}

func TestRenderTemplateDoesNotRescanValues(t *testing.T) {
	got := RenderTemplate("{Name}", TemplateContext{Name: "{Event}", Event: "Gala"})
	if got != "{Event}" {
		t.Fatalf("expected substituted value kept verbatim, got %q", got)
	}
}

func TestContextFor(t *testing.T) {
	ev := domain.Event{Name: "gala-2024", EventName: "Spring Gala", Date: "2024-05-01", Location: "Hall A", RSVPFormURL: "https://example.com/rsvp/1"}
	c := ContextFor(ev, domain.Contact{Name: "Sam"})
	if c.Event != "Spring Gala" || c.Link != ev.RSVPFormURL || c.Name != "Sam" {
		t.Fatalf("unexpected context %+v", c)
	}
	ev.EventName = ""
	if ContextFor(ev, domain.Contact{}).Event != "gala-2024" {
		t.Fatalf("expected fallback to internal name")
	}
}

func TestPhoneKey(t *testing.T) {
	if got := PhoneKey("  +1 555 0100 "); got != "+15550100" {
		t.Fatalf("unexpected phone %q", got)
	}
}
