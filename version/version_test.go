package version

import (
	"runtime/debug"
	"testing"
)

func withVars(t *testing.T, version, commit, built string) {
	t.Helper()
	v, c, b := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = v, c, b })
}

func TestResolve(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.25.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}
	tests := []struct {
		name      string
		commit    string
		bi        *debug.BuildInfo
		ok        bool
		wantShort string
		wantFull  string
	}{
		{"no build info", "", nil, false, "1.0.0", "1.0.0"},
		{"vcs settings", "", bi, true, "1.0.0-0123456-dirty", "1.0.0-0123456-dirty (built 2026-01-02T03:04:05Z) go1.25.0"},
		{"ldflags win", "feedbee", bi, true, "1.0.0-feedbee-dirty", "1.0.0-feedbee-dirty (built 2026-01-02T03:04:05Z) go1.25.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVars(t, "1.0.0", tt.commit, "")
			info := resolve(tt.bi, tt.ok)
			if got := info.Short(); got != tt.wantShort {
				t.Errorf("Short() = %q, want %q", got, tt.wantShort)
			}
			if got := info.Full(); got != tt.wantFull {
				t.Errorf("Full() = %q, want %q", got, tt.wantFull)
			}
		})
	}
}

func TestGetShortVersionDefault(t *testing.T) {
	withVars(t, "dev", "", "")
	if got := GetShortVersion(); got == "" || got[:3] != "dev" {
		t.Errorf("GetShortVersion() = %q", got)
	}
}
