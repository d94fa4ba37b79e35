// Package version carries build metadata set through -ldflags.
package version

import "fmt"

var (
	// Version is the release tag, populated by the build system.
	Version = "v0.1.0-dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders all build metadata on one line.
func String() string {
	return fmt.Sprintf("trainconf %s (commit %s, built %s)", Version, Commit, Date)
}
