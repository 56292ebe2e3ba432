package config

import "fmt"

// Set at build time with -ldflags "-X github.com/getzep/entitylink/config.Version=..."
var (
	Version       = "dev"
	CommitHash    = "n/a"
	BuildTime     = "n/a"
	VersionString = fmt.Sprintf("%s-%s (%s)", Version, CommitHash, BuildTime)
)
