// SPDX-License-Identifier: MIT

// Package build carries build metadata (name, version, commit, timestamp)
// embedded at compile time via -ldflags. Development builds without flags
// fall back to placeholder values so the binary still runs.
package build

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

var info = Info{
	Name:    "reactive-core",
	Time:    "unknown",
	Commit:  "unknown",
	Version: "dev",
}

// Initialize copies any ldflags-provided values over the development
// defaults. Must be called early in startup.
func Initialize() {
	if buildName != "" {
		info.Name = buildName
	}
	if buildTime != "" {
		info.Time = buildTime
	}
	if buildCommit != "" {
		info.Commit = buildCommit
	}
	if buildVersion != "" {
		info.Version = buildVersion
	}
}

// GetInfo returns the current build information.
func GetInfo() Info {
	return info
}
