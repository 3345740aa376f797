package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"srcreg/internal/export"
	"srcreg/internal/locator"
	"srcreg/internal/runstore"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

func parseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatHuman, "":
		return FormatHuman, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// runListResponse is the output of `runs list`.
type runListResponse struct {
	Runs []*runstore.Run `json:"runs"`
}

// runShowResponse is the output of `runs show`.
type runShowResponse struct {
	Run     *runstore.Run `json:"run"`
	Filter  string        `json:"filter,omitempty"`
	Records []export.Row  `json:"records"`
}

// typeInfo describes one supported source type.
type typeInfo struct {
	Type     string `json:"type"`
	KeyShape string `json:"keyShape"`
}

type typesResponse struct {
	Types []typeInfo `json:"types"`
}

func supportedTypes() *typesResponse {
	resp := &typesResponse{}
	for _, t := range locator.SupportedTypes() {
		resp.Types = append(resp.Types, typeInfo{
			Type:     t,
			KeyShape: locator.KeyShape(locator.SourceType(t)),
		})
	}
	return resp
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *runListResponse:
		return formatRunListHuman(v), nil
	case *runShowResponse:
		return formatRunShowHuman(v), nil
	case *typesResponse:
		return formatTypesHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatRunListHuman(resp *runListResponse) string {
	if len(resp.Runs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tINPUT\tROWS\tVALID\tDUP\tINVALID")
	for _, r := range resp.Runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ShortID(),
			r.CreatedAt.Local().Format(time.DateTime),
			r.InputPath,
			r.InputRows,
			r.ValidRows,
			r.DuplicateRows,
			r.InvalidRows,
		)
	}
	_ = w.Flush()
	return b.String()
}

func formatRunShowHuman(resp *runShowResponse) string {
	var b strings.Builder
	r := resp.Run

	b.WriteString(fmt.Sprintf("Run %s\n", r.ID))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("Created:  %s\n", r.CreatedAt.Local().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Input:    %s (%s)\n", r.InputPath, r.InputFormat))
	b.WriteString(fmt.Sprintf("Digest:   %s\n", r.InputDigest))
	b.WriteString(fmt.Sprintf("Output:   %s\n", r.OutputDir))
	b.WriteString(fmt.Sprintf("Rows:     %d (valid %d, duplicate %d, invalid %d)\n\n",
		r.InputRows, r.ValidRows, r.DuplicateRows, r.InvalidRows))

	if resp.Filter != "" {
		b.WriteString(fmt.Sprintf("Filter: %s (%d matching)\n", resp.Filter, len(resp.Records)))
	}
	if len(resp.Records) == 0 {
		b.WriteString("No records.\n")
		return b.String()
	}

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tTYPE\tSTATUS\tKEY / REASON")
	for _, rec := range resp.Records {
		detail := rec.CanonicalKey
		switch rec.Status {
		case "invalid":
			detail = rec.InvalidReason
		case "duplicate":
			detail = fmt.Sprintf("%s (dup of %d)", rec.CanonicalKey, rec.DuplicateOf)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.SourceRow, rec.SourceType, rec.Status, detail)
	}
	_ = w.Flush()
	return b.String()
}

func formatTypesHuman(resp *typesResponse) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCANONICAL KEY")
	for _, t := range resp.Types {
		fmt.Fprintf(w, "%s\t%s\n", t.Type, t.KeyShape)
	}
	_ = w.Flush()
	return b.String()
}

func printResponse(w io.Writer, resp interface{}, format OutputFormat) error {
	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err = io.WriteString(w, out)
	return err
}
