// SPDX-License-Identifier: MIT
//
// Package build carries the link-time identity of a flickerctl binary:
// application name, build timestamp, Git commit, and semantic version,
// injected with -ldflags at compile time. During development, before
// any flags are set, every field reads as its development default.
package build

import "fmt"

// Info is the resolved build identity.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Package-level variables populated by -ldflags. Left empty during a
// plain `go build`, in which case Initialize fails and GetBuildFlags
// keeps the development defaults.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	buildFlags = &Info{
		Name:    "flickerctl",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize validates the injected flags and copies them into the
// Info GetBuildFlags returns. Returns an error naming the first
// missing flag.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	return nil
}

// GetBuildFlags returns the current build identity. Safe to call
// whether or not Initialize has run.
func GetBuildFlags() *Info {
	return buildFlags
}

// Summary renders the identity on one line, for --version output.
func (i *Info) Summary() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
