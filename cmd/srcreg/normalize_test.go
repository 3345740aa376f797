package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/export"
	"srcreg/internal/paths"
	"srcreg/internal/runstore"
)

const scenarioCSV = `source_type,source_locator,source_section,evidence_level,priority,notes
code,src/app.py:42,,High,P0,
code,src\app.py:42,,,,
figma,https://www.figma.com/design/ABC123/My-File?node-id=10-20,,,,
notion,https://notion.so/Page-abcdef1234567890abcdef1234567890#section-2,,,,
other,  Shared Drawing v2 ,,,,
other,shared drawing v2,,,,
xml,some-locator,,,,
code,://not-a-path,,,,
`

// newTestEnv initializes a project in a temp dir and returns its env.
func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	t.Setenv(paths.HomeEnvVar, "")

	root := t.TempDir()
	require.NoError(t, executeInit(io.Discard, root, false))

	env, err := newAppEnv(envOptions{ConfigDir: root, Stderr: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func writeInput(t *testing.T, env *appEnv, name, content string) string {
	t.Helper()
	path := filepath.Join(env.root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readOutputCSV(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	var out []map[string]string
	for _, row := range rows[1:] {
		m := make(map[string]string, len(row))
		for i, col := range rows[0] {
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}

func TestNormalize_Scenarios(t *testing.T) {
	env := newTestEnv(t)
	input := writeInput(t, env, "sources.csv", scenarioCSV)
	outDir := filepath.Join(env.root, "out")

	result, err := executeNormalize(context.Background(), env, normalizeOptions{Input: input, OutDir: outDir})
	require.NoError(t, err)

	assert.Equal(t, 8, result.Summary.InputRows)
	assert.Equal(t, 4, result.Summary.ValidRows)
	assert.Equal(t, 2, result.Summary.DuplicateRows)
	assert.Equal(t, 2, result.Summary.InvalidRows)
	assert.Equal(t, outDir, result.Summary.OutputDir)
	assert.NotEmpty(t, result.Summary.RunID)
	assert.Equal(t, []string{"api", "code", "doc", "figma", "notion", "other"}, result.Summary.SupportedSourceTypes)

	rows := readOutputCSV(t, filepath.Join(outDir, export.NormalizedCSV))
	require.Len(t, rows, 8)

	tests := []struct {
		row         int
		status      string
		key         string
		duplicateOf string
		reason      string
	}{
		{1, "valid", "code:src/app.py:42", "", ""},
		{2, "duplicate", "code:src/app.py:42", "1", ""},
		{3, "valid", "figma:ABC123:10:20", "", ""},
		{4, "valid", "notion:abcdef1234567890abcdef1234567890:section-2", "", ""},
		{5, "valid", "", "", ""},
		{6, "duplicate", "", "5", ""},
		{7, "invalid", "", "", "unsupported source_type: xml"},
		{8, "invalid", "", "", "code locator must be path or path:line"},
	}
	for _, tt := range tests {
		got := rows[tt.row-1]
		assert.Equal(t, tt.status, got["status"], "row %d status", tt.row)
		if tt.key != "" {
			assert.Equal(t, tt.key, got["canonical_key"], "row %d key", tt.row)
		}
		assert.Equal(t, tt.duplicateOf, got["duplicate_of"], "row %d duplicate_of", tt.row)
		assert.Equal(t, tt.reason, got["invalid_reason"], "row %d reason", tt.row)
	}

	assert.Equal(t, "10:20", rows[2]["node_id"])
	assert.Equal(t, "high", rows[0]["evidence_level"])
	assert.Equal(t, "p0", rows[0]["priority"])
	assert.Equal(t, rows[4]["canonical_key"], rows[5]["canonical_key"])
	assert.True(t, strings.HasPrefix(rows[4]["canonical_key"], "other:"))
	assert.Len(t, strings.TrimPrefix(rows[4]["canonical_key"], "other:"), 16)

	assert.Len(t, readOutputCSV(t, filepath.Join(outDir, export.DuplicatesCSV)), 2)
	assert.Len(t, readOutputCSV(t, filepath.Join(outDir, export.InvalidCSV)), 2)

	data, err := os.ReadFile(filepath.Join(outDir, export.SummaryJSON))
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, float64(8), summary["input_rows"])
	assert.Equal(t, result.Summary.RunID, summary["run_id"])
}

func TestNormalize_RecordsRun(t *testing.T) {
	env := newTestEnv(t)
	input := writeInput(t, env, "sources.csv", scenarioCSV)
	ctx := context.Background()

	first, err := executeNormalize(ctx, env, normalizeOptions{Input: input, OutDir: filepath.Join(env.root, "a")})
	require.NoError(t, err)
	assert.Empty(t, first.PreviousRuns)

	second, err := executeNormalize(ctx, env, normalizeOptions{Input: input, OutDir: filepath.Join(env.root, "b")})
	require.NoError(t, err)
	assert.Equal(t, []string{first.Summary.RunID}, second.PreviousRuns)

	store, err := runstore.OpenStore(env.root, nil)
	require.NoError(t, err)
	defer store.Close()

	list, err := executeRunsList(ctx, store, 10)
	require.NoError(t, err)
	require.Len(t, list.Runs, 2)

	show, err := executeRunsShow(ctx, store, first.Summary.RunID[:8], `status == "duplicate"`)
	require.NoError(t, err)
	assert.Equal(t, first.Summary.RunID, show.Run.ID)
	require.Len(t, show.Records, 2)
	assert.Equal(t, 2, show.Records[0].SourceRow)
	assert.Equal(t, 1, show.Records[0].DuplicateOf)
	assert.Equal(t, 6, show.Records[1].SourceRow)
}

func TestNormalize_NoStore(t *testing.T) {
	env := newTestEnv(t)
	input := writeInput(t, env, "sources.csv", scenarioCSV)

	result, err := executeNormalize(context.Background(), env, normalizeOptions{
		Input:   input,
		OutDir:  filepath.Join(env.root, "out"),
		NoStore: true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Summary.RunID)

	_, err = os.Stat(paths.RunsDBPath(env.root))
	assert.True(t, os.IsNotExist(err), "runs.db should not be created with NoStore")
}

func TestNormalize_WorkersDoNotChangeResult(t *testing.T) {
	env := newTestEnv(t)
	input := writeInput(t, env, "sources.csv", scenarioCSV)

	var outputs []string
	for _, workers := range []int{0, 1, 3, 16} {
		w := workers
		out := filepath.Join(env.root, "out", string(rune('a'+len(outputs))))
		_, err := executeNormalize(context.Background(), env, normalizeOptions{
			Input:   input,
			OutDir:  out,
			Workers: &w,
			NoStore: true,
		})
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(out, export.NormalizedCSV))
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	for i := 1; i < len(outputs); i++ {
		assert.Equal(t, outputs[0], outputs[i])
	}
}

func TestNormalize_JSONFormatAndStdin(t *testing.T) {
	env := newTestEnv(t)
	outDir := filepath.Join(env.root, "out")

	result, err := executeNormalize(context.Background(), env, normalizeOptions{
		Input:   "-",
		OutDir:  outDir,
		Formats: []string{"json"},
		NoStore: true,
		Stdin:   strings.NewReader(scenarioCSV),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(outDir, export.NormalizedJSON),
		filepath.Join(outDir, export.SummaryJSON),
	}, result.Files)

	var buf bytes.Buffer
	require.NoError(t, writeNormalizeResult(&buf, result, FormatJSON))
	var summary map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	assert.Equal(t, float64(4), summary["valid_rows"])
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNormalize_StructuredInput(t *testing.T) {
	env := newTestEnv(t)
	input := writeInput(t, env, "sources.yaml", `sources:
  - source_type: code
    source_locator: "src/app.py:42"
  - source_type: CODE
    source_locator: 'src\app.py:42'
`)

	result, err := executeNormalize(context.Background(), env, normalizeOptions{
		Input:   input,
		OutDir:  filepath.Join(env.root, "out"),
		NoStore: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.ValidRows)
	assert.Equal(t, 1, result.Summary.DuplicateRows)
}

func TestNormalize_DatasetErrors(t *testing.T) {
	env := newTestEnv(t)
	outDir := filepath.Join(env.root, "out")

	tests := []struct {
		name string
		opts normalizeOptions
		code srcerrors.ErrorCode
	}{
		{
			name: "missing columns",
			opts: normalizeOptions{Input: writeInput(t, env, "bad.csv", "type,locator\ncode,a.go\n")},
			code: srcerrors.MissingColumns,
		},
		{
			name: "missing file",
			opts: normalizeOptions{Input: filepath.Join(env.root, "nope.csv")},
			code: srcerrors.InputUnreadable,
		},
		{
			name: "unknown extension",
			opts: normalizeOptions{Input: writeInput(t, env, "sources.xls", "x")},
			code: srcerrors.InputFormatUnsupported,
		},
		{
			name: "unknown input format",
			opts: normalizeOptions{Input: writeInput(t, env, "s.csv", scenarioCSV), InputFormat: "xml"},
			code: srcerrors.InputFormatUnsupported,
		},
		{
			name: "unknown output format",
			opts: normalizeOptions{Input: writeInput(t, env, "s2.csv", scenarioCSV), Formats: []string{"parquet"}},
			code: srcerrors.ConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.OutDir = outDir
			_, err := executeNormalize(context.Background(), env, tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, srcerrors.CodeOf(err))
		})
	}

	_, err := os.Stat(outDir)
	assert.True(t, os.IsNotExist(err), "no outputs should be written on dataset errors")
}

func TestWriteNormalizeResult_Human(t *testing.T) {
	var buf bytes.Buffer
	err := writeNormalizeResult(&buf, &normalizeResult{
		Summary:      export.Summary{InputRows: 2, ValidRows: 2, OutputDir: "out"},
		PreviousRuns: []string{"abc"},
	}, FormatHuman)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Input rows:     2")
	assert.Contains(t, buf.String(), "latest abc")
}
