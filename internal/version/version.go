// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the `parley version` line.
func String() string {
	return fmt.Sprintf("parley %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}

// Release names this build for error reports.
func Release() string {
	if Commit == "none" || Commit == "" {
		return "parley@" + Version
	}
	return "parley@" + Version + "+" + Commit
}
