package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/registry"
)

// Exporter writes classified records to an output directory
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{logger: logger}
}

// BuildRows converts classified records into output rows.
func BuildRows(records []registry.Classified, lowercasePassthrough bool) []Row {
	rows := make([]Row, len(records))
	for i, c := range records {
		rows[i] = toRow(c, lowercasePassthrough)
	}
	return rows
}

func toRow(c registry.Classified, lowercasePassthrough bool) Row {
	rec := c.Record
	passthrough := strings.TrimSpace
	if lowercasePassthrough {
		passthrough = func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	}

	return Row{
		SourceRow:               rec.Row,
		SourceType:              strings.ToLower(strings.TrimSpace(rec.SourceType)),
		SourceLocatorRaw:        strings.TrimSpace(rec.Locator),
		SourceLocatorNormalized: c.Canonical.Normalized,
		SourceSection:           strings.TrimSpace(rec.Section),
		EvidenceLevel:           passthrough(rec.EvidenceLevel),
		Priority:                passthrough(rec.Priority),
		Notes:                   strings.TrimSpace(rec.Notes),
		CanonicalKey:            c.Canonical.Key,
		FileKey:                 c.Canonical.FileKey,
		NodeID:                  c.Canonical.NodeID,
		PageID:                  c.Canonical.PageID,
		Path:                    c.Canonical.Path,
		Line:                    c.Canonical.Line,
		Status:                  string(c.Status),
		InvalidCode:             string(c.InvalidCode),
		InvalidReason:           c.InvalidReason,
		DuplicateOf:             c.DuplicateOf,
	}
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []string {
	dup := ""
	if r.DuplicateOf > 0 {
		dup = strconv.Itoa(r.DuplicateOf)
	}
	return []string{
		strconv.Itoa(r.SourceRow),
		r.SourceType,
		r.SourceLocatorRaw,
		r.SourceLocatorNormalized,
		r.SourceSection,
		r.EvidenceLevel,
		r.Priority,
		r.Notes,
		r.CanonicalKey,
		r.FileKey,
		r.NodeID,
		r.PageID,
		r.Path,
		r.Line,
		r.Status,
		r.InvalidReason,
		dup,
	}
}

// Export writes the output files for records into opts.Dir.
func (e *Exporter) Export(ctx context.Context, records []registry.Classified, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, srcerrors.New(srcerrors.OutputFailed,
			fmt.Sprintf("cannot create output directory %s", opts.Dir), err)
	}

	rows := BuildRows(records, opts.LowercasePassthrough)
	buckets := Partition(rows)
	s := registry.Summarize(records)

	result := &Result{
		Rows: rows,
		Summary: Summary{
			DuplicateRows:        s.Duplicate,
			InputRows:            s.Total,
			InvalidRows:          s.Invalid,
			OutputDir:            opts.Dir,
			RunID:                opts.RunID,
			SupportedSourceTypes: s.SupportedTypes,
			ValidRows:            s.Valid,
		},
	}

	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(opts.Dir, name)
		if err := writeAtomic(path, fn); err != nil {
			return srcerrors.New(srcerrors.OutputFailed, fmt.Sprintf("cannot write %s", path), err)
		}
		result.Files = append(result.Files, path)
		return nil
	}

	if opts.CSV {
		for _, f := range []struct {
			name string
			rows []Row
		}{
			{NormalizedCSV, buckets.All},
			{DuplicatesCSV, buckets.Duplicates},
			{InvalidCSV, buckets.Invalid},
		} {
			rows := f.rows
			if err := write(f.name, func(w io.Writer) error { return WriteCSV(w, rows) }); err != nil {
				return nil, err
			}
		}
	}
	if opts.JSON {
		if err := write(NormalizedJSON, func(w io.Writer) error { return WriteJSON(w, rows) }); err != nil {
			return nil, err
		}
	}
	if err := write(SummaryJSON, func(w io.Writer) error { return WriteSummary(w, result.Summary) }); err != nil {
		return nil, err
	}

	e.logger.Info("Wrote outputs",
		"dir", opts.Dir,
		"files", len(result.Files),
		"valid", s.Valid,
		"duplicate", s.Duplicate,
		"invalid", s.Invalid,
	)
	return result, nil
}

// WriteCSV writes the header and rows with CRLF line endings.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteSummary writes the summary as 2-space indented JSON with sorted keys,
// escaping non-ASCII characters.
func WriteSummary(w io.Writer, s Summary) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return err
	}
	_, err := w.Write(asciiEscape(bytes.TrimRight(buf.Bytes(), "\n")))
	return err
}

// asciiEscape rewrites every non-ASCII rune in encoded JSON as a \u escape.
// Non-ASCII bytes only occur inside string literals, so this keeps the document valid.
func asciiEscape(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	for _, r := range string(data) {
		if r < 0x80 {
			out.WriteRune(r)
			continue
		}
		if r > 0xffff {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		fmt.Fprintf(&out, `\u%04x`, r)
	}
	return out.Bytes()
}

// writeAtomic writes via a temp file in the same directory and renames it into place.
func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
