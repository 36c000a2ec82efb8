// Package version describes the running build: commit, VCS state, and Go
// toolchain, derived from -ldflags overrides or debug.BuildInfo.
package version

import (
	"runtime"
	"runtime/debug"
)

// AppName is the application name used in version strings and MCP handshakes.
const AppName = "qe-intelligence"

// gitCommitOverride is set via -ldflags at build time for container builds
// where .git is unavailable. Empty string means no override.
var gitCommitOverride string

// Info is the build description surfaced by the health endpoint and the CLI
// --version output.
type Info struct {
	App       string `json:"app"`
	GitCommit string `json:"git_commit"`
	// BuildTime is the commit timestamp (vcs.time), empty outside git builds.
	BuildTime string `json:"build_time,omitempty"`
	// Dirty marks builds from a working tree with uncommitted changes.
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
}

var current = load()

// GitCommit is the short git commit hash (8 chars) from build info.
// "dev" when build info is unavailable (e.g., `go test`, non-git builds).
var GitCommit = current.GitCommit

func load() Info {
	info := Info{
		App:       AppName,
		GitCommit: "dev",
		GoVersion: runtime.Version(),
	}
	if gitCommitOverride != "" {
		info.GitCommit = shortRev(gitCommitOverride)
		return info
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if s.Value != "" {
				info.GitCommit = shortRev(s.Value)
			}
		case "vcs.time":
			info.BuildTime = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Get returns the build description.
func Get() Info {
	return current
}

// Full returns "qe-intelligence/<commit>" for user-agent strings and logging.
func Full() string {
	return AppName + "/" + GitCommit
}
