package version

import (
	"fmt"
	"runtime"
)

// Set through -ldflags "-X github.com/younsl/vpcepilot/internal/version.version=..."
var (
	version   = "dev"
	buildDate = "unknown" // RFC3339
	gitCommit = "unknown"
)

// BuildInfo contains version and build details.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build information.
func Get() BuildInfo {
	return BuildInfo{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
}

// String renders the --version line
func (b BuildInfo) String() string {
	commit := b.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("vpcepilot version %s (commit: %s, built: %s, %s)", b.Version, commit, b.BuildDate, b.GoVersion)
}
