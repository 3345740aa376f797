// Package registry classifies source registry records as valid, duplicate or invalid.
//
// Normalization of each record is independent and may run in parallel. Duplicate
// detection is not: the first record (in input order) with a given canonical key is
// valid and every later one is a duplicate of it, so classification is a single
// ordered reduction over the normalization outcomes.
package registry

import "srcreg/internal/locator"

// Status is the terminal classification of a record.
type Status string

const (
	StatusValid     Status = "valid"
	StatusDuplicate Status = "duplicate"
	StatusInvalid   Status = "invalid"
)

// Record is one raw input row. Only SourceType and Locator are interpreted;
// the remaining attributes are carried through untouched.
type Record struct {
	Row           int
	SourceType    string
	Locator       string
	Section       string
	EvidenceLevel string
	Priority      string
	Notes         string
}

// Classified is a Record joined with its normalization outcome.
type Classified struct {
	Record    Record
	Canonical locator.Canonical
	Status    Status

	InvalidCode   locator.ReasonCode
	InvalidReason string

	// DuplicateOf is the row of the first record sharing the canonical key, or 0.
	DuplicateOf int
}

// Summary holds aggregate counts for a run.
type Summary struct {
	Total          int
	Valid          int
	Duplicate      int
	Invalid        int
	SupportedTypes []string
}

// Summarize tallies records by status.
func Summarize(records []Classified) Summary {
	s := Summary{
		Total:          len(records),
		SupportedTypes: locator.SupportedTypes(),
	}
	for _, r := range records {
		switch r.Status {
		case StatusValid:
			s.Valid++
		case StatusDuplicate:
			s.Duplicate++
		case StatusInvalid:
			s.Invalid++
		}
	}
	return s
}
