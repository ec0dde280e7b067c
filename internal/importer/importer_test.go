package importer

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"rsvpdash/internal/domain"
)

func TestParse(t *testing.T) {
	in := strings.Join([]string{
		"name,phone,email,tags",
		`Sam Lee,+1 555 0100,sam@example.com,"vip;family"`,
		"Alex Kim, +15550101",
		"Broken Row,,broken@example.com",
		"",
		",+15550199",
		`Jo March,+15550102,,"a, b ;c"`,
	}, "\n")

	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Skipped != 2 {
		t.Fatalf("expected 2 skipped rows, got %d", res.Skipped)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %+v", res.Rows)
	}
	first := res.Rows[0]
	if first.Name != "Sam Lee" || first.Phone != "+1 555 0100" || first.Email != "sam@example.com" {
		t.Fatalf("unexpected first row %+v", first)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "vip" || first.Tags[1] != "family" {
		t.Fatalf("unexpected tags %v", first.Tags)
	}
	if res.Rows[1].Phone != "+15550101" || res.Rows[1].Tags != nil {
		t.Fatalf("unexpected second row %+v", res.Rows[1])
	}
	if tags := res.Rows[2].Tags; len(tags) != 3 || tags[2] != "c" {
		t.Fatalf("unexpected tags %v", tags)
	}
}

func TestParseHeaderOnly(t *testing.T) {
	res, err := Parse(strings.NewReader("name,phone\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Rows) != 0 || res.Skipped != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestParseUnreadable(t *testing.T) {
	r := io.MultiReader(strings.NewReader("name,phone\nSam,+1"), iotest.ErrReader(errors.New("connection reset")))
	_, err := Parse(r)
	if !errors.Is(err, domain.ErrImportFormat) {
		t.Fatalf("expected ErrImportFormat, got %v", err)
	}
}
