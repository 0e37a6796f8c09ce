// Package version reports which build of coinfo is running.
//
// Release builds stamp the values with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/coinfo/internal/version.Version=1.4.0 \
//	  -X github.com/rickgao/coinfo/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/rickgao/coinfo/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/coinfo
//
// Unstamped builds fall back to the VCS data the Go toolchain embeds.
package version

import "runtime/debug"

const unknown = "unknown"

var (
	Version   = "dev"
	Commit    = unknown
	BuildTime = unknown
)

// Info is the build block of the /health response.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Get returns the stamped values, filling gaps from debug.ReadBuildInfo.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
	if info.Commit != unknown && info.BuildTime != unknown {
		return info
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fillFromSettings(info, bi.Settings)
}

func fillFromSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == unknown && s.Value != "":
			info.Commit = s.Value[:min(len(s.Value), 7)]
		case s.Key == "vcs.time" && info.BuildTime == unknown && s.Value != "":
			info.BuildTime = s.Value
		}
	}
	return info
}

// UserAgent identifies coinfo on outbound REST calls.
func UserAgent() string {
	return "coinfo/" + Version
}

func (i Info) String() string {
	return i.Version + " (" + i.Commit + ", " + i.BuildTime + ")"
}
