// Package version provides build-time version information.
package version

import "fmt"

// Set at build time with -ldflags "-X painting-enhancer/internal/version.Version=...".
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version for --version output and the window title.
func String() string {
	if GitCommit == "unknown" {
		return "painting-enhancer " + Version
	}
	return fmt.Sprintf("painting-enhancer %s (%s, built %s)", Version, GitCommit, BuildTime)
}
