// Package version holds build metadata set with -ldflags at link time.
package version

import "fmt"

// Set via -ldflags "-X secondpilot/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("secondpilot %s (commit %s, built %s)", Version, Commit, Date)
}
