// Package version holds the srcreg build version.
package version

import "runtime/debug"

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X srcreg/internal/version.Version=1.0.0 -X srcreg/internal/version.Commit=abc123" ./cmd/srcreg
var (
	// Version is the semantic version of srcreg
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// commit prefers the ldflags value, then the VCS revision stamped by `go build`.
func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return Commit
}

// Info returns a formatted version string
func Info() string {
	if c := commit(); c != "unknown" && len(c) > 7 {
		return Version + " (" + c[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "srcreg version " + Version + "\n" +
		"Commit: " + commit() + "\n" +
		"Built: " + BuildDate
}
