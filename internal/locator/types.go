// Package locator turns raw source locators (paths, design links, wiki pages, URLs,
// free text) into canonical keys that can be compared for deduplication.
//
// Every normalizer is a pure function of its input. Failures are reported as a
// *Rejection carrying a stable reason code and the human-readable message that is
// written to the invalid_reason column.
package locator

import (
	"sort"
	"strings"
)

// SourceType is the closed set of source kinds a registry row can declare.
type SourceType string

const (
	SourceCode   SourceType = "code"
	SourceFigma  SourceType = "figma"
	SourceNotion SourceType = "notion"
	SourceDoc    SourceType = "doc"
	SourceAPI    SourceType = "api"
	SourceOther  SourceType = "other"
)

var allSourceTypes = []SourceType{
	SourceCode,
	SourceFigma,
	SourceNotion,
	SourceDoc,
	SourceAPI,
	SourceOther,
}

// ParseSourceType lowercases and trims s and reports whether it names a supported type.
func ParseSourceType(s string) (SourceType, bool) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allSourceTypes {
		if t == known {
			return t, true
		}
	}
	return t, false
}

// SupportedTypes returns the supported source types sorted lexicographically.
func SupportedTypes() []string {
	out := make([]string, len(allSourceTypes))
	for i, t := range allSourceTypes {
		out[i] = string(t)
	}
	sort.Strings(out)
	return out
}

// Canonical is the successful outcome of normalizing a locator.
// Fields that do not apply to a source type are left empty.
type Canonical struct {
	Key        string `json:"canonicalKey"`
	Normalized string `json:"normalizedLocator"`
	FileKey    string `json:"fileKey"`
	NodeID     string `json:"nodeId"`
	PageID     string `json:"pageId"`
	Path       string `json:"path"`
	Line       string `json:"line"`
}

// ReasonCode is a machine-readable record-level rejection reason.
type ReasonCode string

const (
	ReasonUnsupportedType ReasonCode = "UNSUPPORTED_SOURCE_TYPE"
	ReasonEmptyLocator    ReasonCode = "EMPTY_LOCATOR"
	ReasonNotAURL         ReasonCode = "NOT_A_URL"
	ReasonNotCodeLocator  ReasonCode = "NOT_A_CODE_LOCATOR"
	ReasonCodePathInvalid ReasonCode = "CODE_PATH_INVALID"
	ReasonFileKeyMissing  ReasonCode = "FILE_KEY_MISSING"
	ReasonNodeIDMissing   ReasonCode = "NODE_ID_MISSING"
	ReasonNodeIDMalformed ReasonCode = "NODE_ID_MALFORMED"
	ReasonPageIDMissing   ReasonCode = "PAGE_ID_MISSING"
)

// Rejection explains why a locator could not be normalized.
type Rejection struct {
	Code    ReasonCode
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(code ReasonCode, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}
