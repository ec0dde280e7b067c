// Package export serializes report rows as fully quoted CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/report"
)

const (
	FormatCSV  = "csv"
	TimeLayout = "2006-01-02 15:04"
)

var Columns = []string{"Name", "Phone", "Email", "Message Status", "RSVP Status", "Last Message", "RSVP Date", "Notes"}

var RSVPColumns = []string{"Name", "Phone", "Response", "Notes", "Submitted At"}

// allRSVPStatuses is the set a status filter selects when it narrows nothing.
var allRSVPStatuses = []string{string(domain.RSVPYes), string(domain.RSVPNo), string(domain.RSVPMaybe), domain.StatusPending}

// Options narrows the rows before encoding, independently of any on-screen
// filter. EventID is an event id or "all"; an empty RSVPStatuses keeps
// every status.
type Options struct {
	Format       string
	EventID      string
	RSVPStatuses []string
}

func checkFormat(format string) error {
	if format == "" || strings.EqualFold(format, FormatCSV) {
		return nil
	}
	return fmt.Errorf("%q: %w", format, domain.ErrUnsupportedExportFormat)
}

// Narrow applies the event and RSVP status pre-filters.
func Narrow(rows []report.Row, opts Options) []report.Row {
	out := make([]report.Row, 0, len(rows))
	for _, r := range rows {
		if opts.EventID != "" && opts.EventID != domain.FilterAll && strconv.FormatInt(r.EventID, 10) != opts.EventID {
			continue
		}
		if len(opts.RSVPStatuses) > 0 && !slices.Contains(opts.RSVPStatuses, r.RSVPStatus) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Encode writes the header and one record per row surviving Narrow. The
// output depends only on rows and opts. Notes holds the delivery error, or
// the RSVP notes when there is none.
func Encode(w io.Writer, rows []report.Row, opts Options) error {
	if err := checkFormat(opts.Format); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	writeRecord(bw, Columns)
	for _, r := range Narrow(rows, opts) {
		writeRecord(bw, []string{
			r.Name,
			r.Phone,
			r.Email,
			r.MessageStatus,
			r.RSVPStatus,
			formatTime(r.LastMessageAt),
			formatTime(r.RSVPSubmittedAt),
			notes(r),
		})
	}
	return bw.Flush()
}

// EncodeRSVPs writes the raw responses for one event.
func EncodeRSVPs(w io.Writer, rsvps []domain.RSVPResponse) error {
	bw := bufio.NewWriter(w)
	writeRecord(bw, RSVPColumns)
	for _, r := range rsvps {
		at := r.SubmittedAt
		writeRecord(bw, []string{r.Name, r.Phone, string(r.Response), r.Notes, formatTime(&at)})
	}
	return bw.Flush()
}

// notes fills the Notes column with the message delivery error. Rows with
// no delivery error fall back to the guest's RSVP notes, so the column is
// never blank while either exists.
func notes(r report.Row) string {
	if r.MessageError != "" {
		return r.MessageError
	}
	return r.RSVPNotes
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// writeRecord quotes every field and doubles embedded quotes. encoding/csv
// only quotes when needed, so records are written by hand.
func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// Filename names an export after its filters:
// rsvp-report[-<event>][-<statuses>]-<unix millis>.csv. Every character of
// the event name outside [A-Za-z0-9] becomes a dash. Statuses keep the order
// they were selected in and are only included when the set narrows the
// export.
func Filename(eventName string, statuses []string, now time.Time) string {
	parts := []string{"rsvp-report"}
	if eventName != "" {
		parts = append(parts, dashify(eventName))
	}
	if len(statuses) > 0 && len(statuses) < len(allRSVPStatuses) {
		parts = append(parts, strings.Join(statuses, "-"))
	}
	parts = append(parts, strconv.FormatInt(now.UnixMilli(), 10))
	return strings.Join(parts, "-") + "." + FormatCSV
}

func dashify(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, s)
}
