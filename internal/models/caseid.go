package models

import (
	"fmt"
	"github.com/google/uuid"
	"strconv"
	"strings"
	"time"
)

// NewCase is everything needed to create a case record.
type NewCase struct {
	Fields       ExtractedFields
	Summary      *string
	Checklist    *string
	Document     []byte
	DocumentName string
	ReceivedAt   time.Time
}

// Year is the container year of the case: the case year from the document, falling back to the receipt year.
func (n NewCase) Year() int {
	if n.Fields.CaseYear > 0 {
		return n.Fields.CaseYear
	}
	return n.ReceivedAt.Year()
}

// BaseCaseID derives the case id from the identification fields as PREFIX_number_report_year. Documents without
// identification get a random id.
func BaseCaseID(prefix string, f ExtractedFields) string {
	if !f.HasIdentification() {
		return prefix + "_" + uuid.NewString()
	}
	return strings.Join([]string{prefix, sanitizeIDPart(f.CaseNumber), sanitizeIDPart(f.ReportNumber),
		strconv.Itoa(f.CaseYear)}, "_")
}

// DisplayCaseID is the human readable id shown in the pinned status message, e.g., "SEPPATRI 12/345/2024".
func DisplayCaseID(prefix string, f ExtractedFields) string {
	if !f.HasIdentification() {
		return prefix
	}
	return fmt.Sprintf("%s %s/%s/%d", prefix, f.CaseNumber, f.ReportNumber, f.CaseYear)
}

// UniqueCaseID returns base or the first of base-2, base-3, ... that taken reports free.
func UniqueCaseID(base string, taken func(string) bool) string {
	id := base
	for n := 2; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

func sanitizeIDPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(s))
}
