package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info is the resolved build information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
	Dirty     bool   `json:"dirty"`
}

// GetVersionInfo merges link-time values with the embedded VCS settings.
func GetVersionInfo() Info {
	return resolve(debug.ReadBuildInfo())
}

func resolve(bi *debug.BuildInfo, ok bool) Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if !ok || bi == nil {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// Short renders version, commit and dirty flag, e.g. "1.2.0-ab12cd3-dirty".
func (i Info) Short() string {
	parts := []string{i.Version}
	if i.GitCommit != "" {
		parts = append(parts, i.GitCommit)
	}
	if i.Dirty {
		parts = append(parts, "dirty")
	}
	return strings.Join(parts, "-")
}

// Full adds the build time and Go version to Short.
func (i Info) Full() string {
	s := i.Short()
	if i.BuildTime != "" {
		s += fmt.Sprintf(" (built %s)", i.BuildTime)
	}
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	return s
}

// GetShortVersion returns the short version of this binary.
func GetShortVersion() string { return GetVersionInfo().Short() }

// GetFullVersion returns the detailed version of this binary.
func GetFullVersion() string { return GetVersionInfo().Full() }
