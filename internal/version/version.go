// Package version carries build identification stamped in by the linker.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build identification the way the CLI and the monitor
// status endpoint report it.
func String() string {
	return fmt.Sprintf("slicebot %s (%s, built %s)", Version, GitSHA, BuildTime)
}
