// Package runstore keeps a history of normalization runs in a SQLite database.
package runstore

import (
	"time"

	"github.com/google/uuid"

	"srcreg/internal/registry"
)

// Run is one stored normalization run.
type Run struct {
	ID          string    `json:"id"`
	InputPath   string    `json:"inputPath"`
	InputFormat string    `json:"inputFormat"`
	InputDigest string    `json:"inputDigest"`
	OutputDir   string    `json:"outputDir"`
	CreatedAt   time.Time `json:"createdAt"`

	InputRows     int `json:"inputRows"`
	ValidRows     int `json:"validRows"`
	DuplicateRows int `json:"duplicateRows"`
	InvalidRows   int `json:"invalidRows"`
}

// NewRun creates a run with a fresh id and the counts from s.
func NewRun(inputPath, inputFormat, inputDigest, outputDir string, s registry.Summary) *Run {
	return &Run{
		ID:            uuid.New().String(),
		InputPath:     inputPath,
		InputFormat:   inputFormat,
		InputDigest:   inputDigest,
		OutputDir:     outputDir,
		CreatedAt:     time.Now().UTC(),
		InputRows:     s.Total,
		ValidRows:     s.Valid,
		DuplicateRows: s.Duplicate,
		InvalidRows:   s.Invalid,
	}
}

// ShortID returns the first eight characters of the id.
func (r *Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}
