// Package errors defines the dataset-level failures of a srcreg run.
//
// Record-level problems (a malformed locator, an unsupported source type) are not
// errors: they become invalid rows. Everything here aborts the run before or after
// classification.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all fatal failure modes
type ErrorCode string

const (
	// MissingColumns indicates the input lacks source_type or source_locator
	MissingColumns ErrorCode = "MISSING_COLUMNS"
	// InputUnreadable indicates the input could not be opened or decoded
	InputUnreadable ErrorCode = "INPUT_UNREADABLE"
	// InputFormatUnsupported indicates the input format could not be determined
	InputFormatUnsupported ErrorCode = "INPUT_FORMAT_UNSUPPORTED"
	// OutputFailed indicates an output file could not be written
	OutputFailed ErrorCode = "OUTPUT_FAILED"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// RunNotFound indicates a stored run id did not match
	RunNotFound ErrorCode = "RUN_NOT_FOUND"
	// FilterInvalid indicates a record filter expression did not compile
	FilterInvalid ErrorCode = "FILTER_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditInput suggests changing the input file
	EditInput FixActionType = "edit-input"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
}

// SrcregError represents a srcreg error with code, message, and suggestions
type SrcregError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a SrcregError with the default suggested fixes for code.
func New(code ErrorCode, message string, cause error) *SrcregError {
	return &SrcregError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *SrcregError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *SrcregError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SrcregError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *SrcregError) WithDetails(details interface{}) *SrcregError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first SrcregError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var se *SrcregError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	MissingColumns: {
		{
			Type:        EditInput,
			Description: "Add source_type and source_locator columns to the input header",
		},
	},
	InputFormatUnsupported: {
		{
			Type:        RunCommand,
			Command:     "srcreg normalize --input-format csv",
			Description: "Name the input format explicitly",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "srcreg init --force",
			Description: "Regenerate the default configuration",
		},
	},
	RunNotFound: {
		{
			Type:        RunCommand,
			Command:     "srcreg runs list",
			Description: "List stored runs",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
