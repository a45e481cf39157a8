// Package version holds build metadata set via -ldflags
// (-X github.com/aristath/hrpfolio/internal/version.Version=...).
package version

var (
	// Version is the release version
	Version = "dev"
	// BuildTime is the RFC3339 build timestamp
	BuildTime = ""
	// GitCommit is the commit the binary was built from
	GitCommit = ""
)
