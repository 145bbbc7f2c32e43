package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{
			name: "clean checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-03-04T10:00:00Z"},
				{Key: "vcs.modified", Value: "false"},
			},
			wantVersion: "dev-20260304",
			wantCommit:  "0123456",
		},
		{
			name: "dirty tree",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "abc-dirty",
		},
		{
			name:     "no vcs stamp",
			settings: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit := Version, Commit
			defer func() { Version, Commit = oldVersion, oldCommit }()

			Version, Commit = "", ""
			apply(tt.settings)
			if Version != tt.wantVersion || Commit != tt.wantCommit {
				t.Errorf("apply() = %q, %q, want %q, %q", Version, Commit, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestApplyKeepsLinkerValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "v1.0.0", "feedbee"
	apply([]debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789"}})
	if Version != "v1.0.0" || Commit != "feedbee" {
		t.Errorf("apply() overwrote ldflags values: %q, %q", Version, Commit)
	}
}

func TestGet(t *testing.T) {
	oldCommit := Commit
	defer func() { Commit = oldCommit }()

	Commit = "abc1234-dirty"
	info := Get()
	if !info.Modified {
		t.Error("Modified = false for a dirty commit")
	}
	if !strings.Contains(info.String(), "abc1234-dirty") || !strings.Contains(Full(), "commit: abc1234-dirty") {
		t.Errorf("String() = %q, Full() = %q", info.String(), Full())
	}
}
