// Package version exposes build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the release version, overridden at build time via
// -ldflags "-X github.com/marlonsc/mcb/pkg/version.Version=...".
var Version = "0.1.0-dev"

// Commit is the git commit the binary was built from.
var Commit = "unknown"

// String renders the full version line.
func String() string {
	return fmt.Sprintf("mcb %s (%s, %s)", Version, Commit, runtime.Version())
}
