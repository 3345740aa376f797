// Package testutil provides testing utilities for golden tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FixtureContext holds information about a loaded registry fixture.
type FixtureContext struct {
	// Name is the fixture directory name (e.g., "mixed")
	Name string

	// Root is the absolute path to the fixture directory
	Root string

	// InputPath is the registry the fixture feeds to a run
	InputPath string

	// ExpectedDir is the path to the expected/ directory
	ExpectedDir string
}

// LoadFixture loads a registry fixture, failing the test on error.
// The fixture directory must contain a sources.csv input.
func LoadFixture(t *testing.T, name string) *FixtureContext {
	t.Helper()

	root := getFixturesRoot(t)
	fixtureDir := filepath.Join(root, name)

	if _, err := os.Stat(fixtureDir); os.IsNotExist(err) {
		t.Fatalf("Fixture directory not found: %s", fixtureDir)
	}

	inputPath := filepath.Join(fixtureDir, "sources.csv")
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		t.Fatalf("Fixture input not found: %s", inputPath)
	}

	return &FixtureContext{
		Name:        name,
		Root:        fixtureDir,
		InputPath:   inputPath,
		ExpectedDir: filepath.Join(fixtureDir, "expected"),
	}
}

// ExpectedPath returns the path to a golden file within the fixture.
// The name includes its extension, matching the output file it mirrors.
func (f *FixtureContext) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name)
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	// Get the directory of this source file
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}
