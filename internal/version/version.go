package version

import "fmt"

// Project names the suite both binaries belong to.
const Project = "alarm-monitor"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full renders the version line printed by the given binary.
// An empty binary or the project name itself prints the project alone.
func Full(binary string) string {
	name := Project
	if binary != "" && binary != Project {
		name = fmt.Sprintf("%s (%s)", binary, Project)
	}

	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s", name, Version, Commit, BuildTime)
}
