// Package version reports the build version of the powerview-ble tools.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/powerview-ble/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/powerview-ble/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the binary, or "dev".
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			apply(info.Settings)
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// apply fills Version and Commit from build settings
func apply(settings []debug.BuildSetting) {
	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}

	if Commit == "" && values["vcs.revision"] != "" {
		Commit = shortCommit(values["vcs.revision"])
		if values["vcs.modified"] == "true" {
			Commit += "-dirty"
		}
	}

	if Version == "" && values["vcs.time"] != "" {
		if t, err := time.Parse(time.RFC3339, values["vcs.time"]); err == nil {
			Version = "dev-" + t.UTC().Format("20060102")
		}
	}
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Get returns the version info of the running binary
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Modified:  len(Commit) > 6 && Commit[len(Commit)-6:] == "-dirty",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns "version (commit: hash)"
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// String renders the info on one line for `version` commands
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
}
