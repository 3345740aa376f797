package main

import (
	"context"
	"path/filepath"
	"testing"

	"srcreg/internal/export"
	"srcreg/internal/testutil"
)

func TestGolden_MixedRegistry(t *testing.T) {
	fixture := testutil.LoadFixture(t, "mixed")
	env := newTestEnv(t)
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := executeNormalize(context.Background(), env, normalizeOptions{
		Input:   fixture.InputPath,
		OutDir:  outDir,
		NoStore: true,
	})
	if err != nil {
		t.Fatalf("executeNormalize() error = %v", err)
	}

	for _, name := range []string{export.NormalizedCSV, export.DuplicatesCSV, export.InvalidCSV} {
		t.Run(name, func(t *testing.T) {
			testutil.CompareGoldenFile(t, fixture, name, filepath.Join(outDir, name))
		})
	}
	t.Run(export.SummaryJSON, func(t *testing.T) {
		testutil.CompareGoldenFile(t, fixture, export.SummaryJSON,
			filepath.Join(outDir, export.SummaryJSON), outDir, "<OUT>")
	})
}
