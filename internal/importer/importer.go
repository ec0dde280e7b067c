// Package importer turns uploaded CSV into contact creation requests.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"rsvpdash/internal/domain"
)

// Result holds the accepted rows in file order and the number of data rows
// dropped for missing a name or phone.
type Result struct {
	Rows    []domain.ContactInput `json:"rows"`
	Skipped int                   `json:"skipped"`
}

// Parse reads name, phone, email, tags columns in that order. The first
// record is a header and is ignored. Tags may be separated by commas or
// semicolons inside their field.
func Parse(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var res Result
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", domain.ErrImportFormat, err)
		}
		if header {
			header = false
			continue
		}
		if blank(rec) {
			continue
		}
		in := domain.ContactInput{
			Name:  field(rec, 0),
			Phone: field(rec, 1),
			Email: field(rec, 2),
			Tags:  splitTags(field(rec, 3)),
		}
		if in.Validate() != nil {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, in)
	}
	return res, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
