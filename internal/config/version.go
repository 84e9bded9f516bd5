package config

import (
	"fmt"
)

const notSet string = "not set"

// these information will be collected when build, by `-ldflags "-X github.com/capcom6/nfc-watch/internal/config.appVersion=0.1"`.
//
//nolint:gochecknoglobals // build metadata
var (
	appVersion = notSet
	buildTime  = notSet
	gitCommit  = notSet
	gitRef     = notSet
)

func Version() string {
	return appVersion
}

func VersionInfo() string {
	return fmt.Sprintf(
		"Version:    %s\nBuild Time: %s\nGit Commit: %s\nGit Ref:    %s",
		appVersion, buildTime, gitCommit, gitRef,
	)
}
