package export

import (
	"fmt"
	"strings"
)

// Buckets groups rows by status, each in input order.
type Buckets struct {
	All        []Row
	Valid      []Row
	Duplicates []Row
	Invalid    []Row
}

// Partition splits rows into status buckets.
func Partition(rows []Row) Buckets {
	b := Buckets{All: rows}
	for _, r := range rows {
		switch r.Status {
		case "valid":
			b.Valid = append(b.Valid, r)
		case "duplicate":
			b.Duplicates = append(b.Duplicates, r)
		case "invalid":
			b.Invalid = append(b.Invalid, r)
		}
	}
	return b
}

// FormatText renders a summary for terminal output.
func FormatText(s Summary, files []string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Input rows:     %d\n", s.InputRows))
	sb.WriteString(fmt.Sprintf("  valid:        %d\n", s.ValidRows))
	sb.WriteString(fmt.Sprintf("  duplicate:    %d\n", s.DuplicateRows))
	sb.WriteString(fmt.Sprintf("  invalid:      %d\n", s.InvalidRows))
	sb.WriteString(fmt.Sprintf("Source types:   %s\n", strings.Join(s.SupportedSourceTypes, ", ")))
	sb.WriteString(fmt.Sprintf("Output dir:     %s\n", s.OutputDir))
	if s.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:            %s\n", s.RunID))
	}
	if len(files) > 0 {
		sb.WriteString("Files:\n")
		for _, f := range files {
			sb.WriteString("  " + f + "\n")
		}
	}
	return sb.String()
}
