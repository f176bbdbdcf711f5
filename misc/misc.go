// Package misc keeps build identity helpers used across the program.
package misc

import "runtime/debug"

const appName = "ept"

// GetAppName returns short program name used for logs, temporary files and
// configuration defaults.
func GetAppName() string {
	return appName
}

// GetVersion returns module version recorded in build info, or "devel" when
// the binary was built from a working tree.
func GetVersion() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "devel"
}

// GetGitHash returns vcs revision recorded in build info if available.
func GetGitHash() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
