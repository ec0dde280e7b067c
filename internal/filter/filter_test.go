package filter

import (
	"testing"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/report"
)

func sampleRows() []report.Row {
	return []report.Row{
		{ContactID: 1, Name: "Sam Lee", Phone: "+1 555 0100", Email: "sam@example.com", ListID: 1, MessageStatus: "read", RSVPStatus: "yes", EventID: 1},
		{ContactID: 2, Name: "Alex Kim", Phone: "+15550101", ListID: 1, MessageStatus: "sent", RSVPStatus: "pending", EventID: 1},
		{ContactID: 3, Name: "Jo March", Phone: "+15550102", Email: "JO@corp.io", ListID: 2, MessageStatus: "delivered", RSVPStatus: "no", EventID: 2},
		{ContactID: 4, Name: "Pat Doe", Phone: "+15550103", ListID: 2, MessageStatus: "pending", RSVPStatus: "pending"},
	}
}

func ids(rows []report.Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ContactID
	}
	return out
}

func TestIdentityLaw(t *testing.T) {
	rows := sampleRows()
	for _, c := range []ReportCriteria{
		{},
		{Event: "all", Status: "all", RSVP: "all"},
		{Search: "", Event: domain.FilterAll},
	} {
		got := c.Apply(rows)
		if len(got) != len(rows) {
			t.Fatalf("%+v: expected identity, got %v", c, ids(got))
		}
		for i := range rows {
			if got[i].ContactID != rows[i].ContactID {
				t.Fatalf("%+v: order changed: %v", c, ids(got))
			}
		}
	}
}

func TestReportCriteria(t *testing.T) {
	tests := []struct {
		name string
		c    ReportCriteria
		want []int64
	}{
		{"search name", ReportCriteria{Search: "sam"}, []int64{1}},
		{"search email case", ReportCriteria{Search: "jo@CORP"}, []int64{3}},
		{"search raw phone", ReportCriteria{Search: "555 01"}, []int64{1}},
		{"search phone digits", ReportCriteria{Search: "0101"}, []int64{2}},
		{"event", ReportCriteria{Event: "1"}, []int64{1, 2}},
		{"status", ReportCriteria{Status: "delivered"}, []int64{3}},
		{"responded", ReportCriteria{Status: StatusResponded}, []int64{1, 3}},
		{"rsvp", ReportCriteria{RSVP: "pending"}, []int64{2, 4}},
		{"and", ReportCriteria{Event: "1", RSVP: "pending"}, []int64{2}},
		{"no match", ReportCriteria{Search: "zzz"}, []int64{}},
		{"whitespace term is literal", ReportCriteria{Search: "   "}, []int64{}},
		{"leading space kept", ReportCriteria{Search: " sam"}, []int64{}},
		{"inner space", ReportCriteria{Search: " lee"}, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(tt.c.Apply(sampleRows()))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestFiltersNeverGrow(t *testing.T) {
	rows := sampleRows()
	for _, term := range []string{"", "a", "e", "+1", "example"} {
		for _, status := range []string{"all", "sent", "read", StatusResponded} {
			c := ReportCriteria{Search: term, Status: status}
			if n := len(c.Apply(rows)); n > len(rows) {
				t.Fatalf("%+v grew result to %d", c, n)
			}
			narrower := ReportCriteria{Search: term, Status: status, RSVP: "yes"}
			if len(narrower.Apply(rows)) > len(c.Apply(rows)) {
				t.Fatalf("adding a filter grew the result for %+v", c)
			}
		}
	}
}

func TestContactCriteria(t *testing.T) {
	got := ids(ContactCriteria{List: "2", RSVP: "pending"}.Apply(sampleRows()))
	if len(got) != 1 || got[0] != 4 {
		t.Fatalf("expected [4], got %v", got)
	}
}

func TestMessageCriteria(t *testing.T) {
	rows := []MessageRow{
		{Message: domain.Message{ID: 1, EventID: 1, Status: domain.StatusSent, Content: "Hi Sam"}, ContactName: "Sam", EventName: "Gala"},
		{Message: domain.Message{ID: 2, EventID: 2, Status: domain.StatusRead, Content: "Reminder"}, ContactName: "Jo", EventName: "Offsite"},
	}
	if got := (MessageCriteria{Search: "offsite"}).Apply(rows); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected event name search to match message 2, got %+v", got)
	}
	if got := (MessageCriteria{Search: "hi s", Status: "sent", Event: "1"}).Apply(rows); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected message 1, got %+v", got)
	}
	if got := (MessageCriteria{Status: "failed"}).Apply(rows); len(got) != 0 {
		t.Fatalf("expected no rows, got %+v", got)
	}
}
