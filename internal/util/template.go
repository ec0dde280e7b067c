package util

import (
	"strings"

	"rsvpdash/internal/domain"
)

// Placeholders are the tokens RenderTemplate substitutes. Anything else in
// braces is left as written.
var Placeholders = []string{"{Name}", "{Event}", "{Date}", "{Location}", "{link}"}

type TemplateContext struct {
	Name     string
	Event    string
	Date     string
	Location string
	Link     string
}

// ContextFor fills a TemplateContext for one contact of an event.
func ContextFor(ev domain.Event, c domain.Contact) TemplateContext {
	return TemplateContext{
		Name:     c.Name,
		Event:    ev.DisplayName(),
		Date:     ev.Date,
		Location: ev.Location,
		Link:     ev.RSVPFormURL,
	}
}

// RenderTemplate replaces every occurrence of each placeholder in a single
// pass, so substituted values are never rescanned.
func RenderTemplate(body string, c TemplateContext) string {
	r := strings.NewReplacer(
		"{Name}", c.Name,
		"{Event}", c.Event,
		"{Date}", c.Date,
		"{Location}", c.Location,
		"{link}", c.Link,
	)
	return r.Replace(body)
}
