// Package ingest reads source registries into registry records.
//
// A registry is a header-first CSV (or TSV) file, or a JSON, YAML or TOML document
// holding a list of source objects. Any of them may be gzip or zstd compressed.
package ingest

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/registry"
)

// Format identifies how a registry is encoded.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Compression identifies the container around the registry bytes.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Column names recognised in a registry.
const (
	ColSourceType    = "source_type"
	ColLocator       = "source_locator"
	ColSection       = "source_section"
	ColEvidenceLevel = "evidence_level"
	ColPriority      = "priority"
	ColNotes         = "notes"
)

// RequiredColumns must be present in every registry.
var RequiredColumns = []string{ColSourceType, ColLocator}

// StdinPath selects standard input.
const StdinPath = "-"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

// Options controls how Open reads a registry.
type Options struct {
	// Format overrides extension-based detection when set.
	Format Format
	// Stdin is read when the path is "-". Defaults to os.Stdin.
	Stdin  io.Reader
	Logger *slog.Logger
}

// Dataset is a decoded registry.
type Dataset struct {
	Path        string
	Format      Format
	Compression Compression
	// Columns are the normalized header names (CSV) or the union of keys (structured), sorted.
	Columns []string
	Records []registry.Record
	// Digest is the hex BLAKE2b-256 of the bytes as read, before decompression.
	Digest string
}

// ParseFormat parses a user-supplied format name.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, true
	case "tsv":
		return FormatTSV, true
	case "json":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "toml":
		return FormatTOML, true
	}
	return "", false
}

// DetectFormat infers the format from a file name, ignoring a trailing .gz or .zst.
func DetectFormat(path string) (Format, bool) {
	if path == StdinPath {
		return FormatCSV, true
	}
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".zst")
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", false
	}
	return ParseFormat(ext)
}

// Open reads and decodes the registry at path.
func Open(ctx context.Context, path string, opts Options) (*Dataset, error) {
	var (
		raw []byte
		err error
	)
	if path == StdinPath {
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, srcerrors.New(srcerrors.InputUnreadable, fmt.Sprintf("cannot read %s", path), err)
	}
	return Decode(ctx, path, raw, opts)
}

// Decode decodes registry bytes. name is used for format detection and messages.
func Decode(ctx context.Context, name string, raw []byte, opts Options) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	format := opts.Format
	if format == "" {
		detected, ok := DetectFormat(name)
		if !ok {
			return nil, srcerrors.New(srcerrors.InputFormatUnsupported,
				fmt.Sprintf("cannot determine the format of %s", name), nil)
		}
		format = detected
	}

	sum := blake2b.Sum256(raw)
	ds := &Dataset{
		Path:   name,
		Format: format,
		Digest: hex.EncodeToString(sum[:]),
	}

	data, compression, err := decompress(raw)
	if err != nil {
		return nil, srcerrors.New(srcerrors.InputUnreadable,
			fmt.Sprintf("cannot decompress %s", name), err)
	}
	ds.Compression = compression
	data = bytes.TrimPrefix(data, utf8BOM)

	var rows []map[string]string
	switch format {
	case FormatCSV, FormatTSV:
		ds.Columns, rows, err = decodeDelimited(ctx, data, format)
	case FormatJSON, FormatYAML, FormatTOML:
		ds.Columns, rows, err = decodeStructured(data, format)
	default:
		return nil, srcerrors.New(srcerrors.InputFormatUnsupported,
			fmt.Sprintf("unsupported input format %q", format), nil)
	}
	if err != nil {
		return nil, err
	}

	structuredEmpty := format != FormatCSV && format != FormatTSV && len(rows) == 0
	if missing := missingColumns(ds.Columns); len(missing) > 0 && !structuredEmpty {
		return nil, srcerrors.New(srcerrors.MissingColumns,
			"missing required columns: "+strings.Join(missing, ", "), nil).
			WithDetails(map[string]any{"missing": missing, "columns": ds.Columns})
	}

	ds.Records = make([]registry.Record, len(rows))
	for i, row := range rows {
		ds.Records[i] = toRecord(i+1, row)
	}

	logger.Debug("Decoded registry",
		"path", name,
		"format", string(format),
		"compression", string(compression),
		"records", len(ds.Records),
	)
	return ds, nil
}

func decompress(raw []byte) ([]byte, Compression, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, "", err
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		return data, CompressionGzip, err
	case bytes.HasPrefix(raw, zstdMagic):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, "", err
		}
		defer dec.Close()
		data, err := dec.DecodeAll(raw, nil)
		return data, CompressionZstd, err
	}
	return raw, CompressionNone, nil
}

// normalizeColumn maps a header cell or object key to its column name.
func normalizeColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func missingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	slices.Sort(missing)
	return missing
}

func toRecord(row int, fields map[string]string) registry.Record {
	return registry.Record{
		Row:           row,
		SourceType:    fields[ColSourceType],
		Locator:       fields[ColLocator],
		Section:       fields[ColSection],
		EvidenceLevel: fields[ColEvidenceLevel],
		Priority:      fields[ColPriority],
		Notes:         fields[ColNotes],
	}
}
