// Package export writes classified source registries to disk.
// It produces the normalized table, the duplicate and invalid subsets, a summary and,
// optionally, a JSON rendition of the normalized table.
package export

// Output file names
const (
	NormalizedCSV  = "normalized.csv"
	DuplicatesCSV  = "duplicates.csv"
	InvalidCSV     = "invalid.csv"
	SummaryJSON    = "summary.json"
	NormalizedJSON = "normalized.json"
)

// Columns is the fixed column order of every CSV output.
var Columns = []string{
	"source_row",
	"source_type",
	"source_locator_raw",
	"source_locator_normalized",
	"source_section",
	"evidence_level",
	"priority",
	"notes",
	"canonical_key",
	"file_key",
	"node_id",
	"page_id",
	"path",
	"line",
	"status",
	"invalid_reason",
	"duplicate_of",
}

// Row is one output record with passthrough attributes already cleaned.
type Row struct {
	SourceRow               int    `json:"sourceRow"`
	SourceType              string `json:"sourceType"`
	SourceLocatorRaw        string `json:"sourceLocatorRaw"`
	SourceLocatorNormalized string `json:"sourceLocatorNormalized"`
	SourceSection           string `json:"sourceSection"`
	EvidenceLevel           string `json:"evidenceLevel"`
	Priority                string `json:"priority"`
	Notes                   string `json:"notes"`
	CanonicalKey            string `json:"canonicalKey"`
	FileKey                 string `json:"fileKey"`
	NodeID                  string `json:"nodeId"`
	PageID                  string `json:"pageId"`
	Path                    string `json:"path"`
	Line                    string `json:"line"`
	Status                  string `json:"status"`
	InvalidCode             string `json:"invalidCode,omitempty"`
	InvalidReason           string `json:"invalidReason"`
	DuplicateOf             int    `json:"duplicateOf,omitempty"`
}

// Summary is the content of summary.json. Fields are declared in key order so the
// encoded keys come out sorted.
type Summary struct {
	DuplicateRows        int      `json:"duplicate_rows"`
	InputRows            int      `json:"input_rows"`
	InvalidRows          int      `json:"invalid_rows"`
	OutputDir            string   `json:"output_dir"`
	RunID                string   `json:"run_id,omitempty"`
	SupportedSourceTypes []string `json:"supported_source_types"`
	ValidRows            int      `json:"valid_rows"`
}

// Options configures an export.
type Options struct {
	Dir string
	// CSV writes normalized.csv, duplicates.csv and invalid.csv.
	CSV bool
	// JSON writes normalized.json.
	JSON bool
	// LowercasePassthrough lowercases evidence_level and priority.
	LowercasePassthrough bool
	// RunID is recorded in summary.json when non-empty.
	RunID string
}

// Result describes a completed export.
type Result struct {
	Summary Summary
	// Files are the paths written, in write order.
	Files []string
	Rows  []Row
}
