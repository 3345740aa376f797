package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	srcerrors "srcreg/internal/errors"
)

// sourcesKey wraps the record list in object-shaped documents.
const sourcesKey = "sources"

func decodeStructured(data []byte, format Format) ([]string, []map[string]string, error) {
	var doc any
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		var table map[string]any
		err = toml.Unmarshal(data, &table)
		doc = table
	}
	if err != nil {
		return nil, nil, srcerrors.New(srcerrors.InputUnreadable,
			fmt.Sprintf("cannot parse %s", format), err)
	}

	items, err := sourceList(doc)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	rows := make([]map[string]string, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, nil, srcerrors.Newf(srcerrors.InputUnreadable,
				"source %d is not an object", i+1)
		}
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			name := normalizeColumn(k)
			row[name] = stringify(v)
			seen[name] = true
		}
		rows = append(rows, row)
	}

	columns := make([]string, 0, len(seen))
	for c := range seen {
		columns = append(columns, c)
	}
	slices.Sort(columns)
	return columns, rows, nil
}

// sourceList accepts a bare list or an object with a "sources" list.
func sourceList(doc any) ([]any, error) {
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v[sourcesKey].([]any); ok {
			return list, nil
		}
		if _, ok := v[sourcesKey]; !ok {
			return nil, srcerrors.Newf(srcerrors.InputUnreadable,
				"document has no %q list", sourcesKey)
		}
		return nil, srcerrors.Newf(srcerrors.InputUnreadable, "%q is not a list", sourcesKey)
	case nil:
		return nil, nil
	}
	return nil, srcerrors.Newf(srcerrors.InputUnreadable,
		"document must be a list of sources or an object with %q", sourcesKey)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
