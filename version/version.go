// Package version exposes build metadata stamped by the linker, e.g.
//
//	go build -ldflags "-X github.com/nopcorn/rascalrunner/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info is the full version report, stamped values plus toolchain details.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the version report for this binary.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the report for a terminal.
func (i Info) String() string {
	return fmt.Sprintf("rascalrunner %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
