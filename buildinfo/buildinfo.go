// Package buildinfo reports how the orderflow binary was built.
//
// Release builds inject the values with ldflags:
//
//	go build -ldflags "-X github.com/nomis52/orderflow/buildinfo.version=v1.2.0 \
//	    -X github.com/nomis52/orderflow/buildinfo.buildTime=$(date -u +%FT%TZ)" ./cmd/orderflow
//
// Values not injected fall back to the VCS stamp the Go toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Properties holds build-time properties.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

const unknown = "unknown"

var (
	version   = "dev"
	buildTime = unknown
	gitCommit = unknown

	readBuildInfo = debug.ReadBuildInfo
)

// Get returns the current build properties.
func Get() Properties {
	p := Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
	info, ok := readBuildInfo()
	if !ok {
		return p
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if p.GitCommit == unknown {
				p.GitCommit = s.Value
			}
		case "vcs.time":
			if p.BuildTime == unknown {
				p.BuildTime = s.Value
			}
		}
	}
	return p
}

// String renders p on one line, e.g. "dev (commit abc123, built 2026-01-02T03:04:05Z, go1.24.1)".
func (p Properties) String() string {
	commit := p.GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s)", p.Version, commit, p.BuildTime, p.GoVersion)
}
