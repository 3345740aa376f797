// Package paths locates the srcreg workspace directory and the files inside it.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// WorkspaceDirName is the per-project directory holding config and run history
	WorkspaceDirName = ".srcreg"
	// ConfigFileName is the configuration file inside the workspace directory
	ConfigFileName = "config.toml"
	// RunsDBFileName is the SQLite run history inside the workspace directory
	RunsDBFileName = "runs.db"
	// HomeEnvVar overrides workspace discovery
	HomeEnvVar = "SRCREG_HOME"
)

// WorkspaceDir returns <root>/.srcreg
func WorkspaceDir(root string) string {
	return filepath.Join(root, WorkspaceDirName)
}

// ConfigPath returns <root>/.srcreg/config.toml
func ConfigPath(root string) string {
	return filepath.Join(WorkspaceDir(root), ConfigFileName)
}

// RunsDBPath returns <root>/.srcreg/runs.db
func RunsDBPath(root string) string {
	return filepath.Join(WorkspaceDir(root), RunsDBFileName)
}

// EnsureWorkspaceDir creates the workspace directory if needed and returns its path.
func EnsureWorkspaceDir(root string) (string, error) {
	dir := WorkspaceDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// FindRoot walks up from start looking for a directory that contains .srcreg.
// SRCREG_HOME wins when set. If nothing is found, start itself is the root.
func FindRoot(start string) (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return filepath.Abs(home)
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for dir := abs; ; {
		if info, err := os.Stat(WorkspaceDir(dir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}
