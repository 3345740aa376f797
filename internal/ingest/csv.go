package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	srcerrors "srcreg/internal/errors"
)

// ctxCheckEvery is how many rows are read between cancellation checks.
const ctxCheckEvery = 1024

func decodeDelimited(ctx context.Context, data []byte, format Format) ([]string, []map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	if format == FormatTSV {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, srcerrors.New(srcerrors.InputUnreadable, "input has no header", nil)
	}
	if err != nil {
		return nil, nil, srcerrors.New(srcerrors.InputUnreadable, "cannot parse header", err)
	}

	names := make([]string, len(header))
	for i, h := range header {
		names[i] = normalizeColumn(h)
	}

	var rows []map[string]string
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, srcerrors.New(srcerrors.InputUnreadable,
				fmt.Sprintf("cannot parse row %d", n+1), err)
		}

		// Short rows are padded; extra fields have no column and are dropped.
		row := make(map[string]string, len(names))
		for i, name := range names {
			if name == "" {
				continue
			}
			if i < len(fields) {
				row[name] = fields[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	columns := slices.Clone(names)
	columns = slices.DeleteFunc(columns, func(c string) bool { return c == "" })
	slices.Sort(columns)
	return slices.Compact(columns), rows, nil
}
