// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *buildFlags

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildFlags = origFlags

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		buildName  string
		buildTime  string
		commit     string
		version    string
		wantErrMsg string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "flickerctl", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "flickerctl", "2025-04-13", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "flickerctl", "2025-04-13", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "flickerctl", "2025-04-13", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildFlags = &Info{Name: "flickerctl", Time: "unknown", Commit: "unknown", Version: "dev"}
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.commit
			buildVersion = tt.version

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil {
					t.Fatalf("Initialize() expected error %q, got nil", tt.wantErrMsg)
				}
				if err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			if buildFlags.Name != tt.buildName || buildFlags.Time != tt.buildTime ||
				buildFlags.Commit != tt.commit || buildFlags.Version != tt.version {
				t.Errorf("buildFlags = %+v, want fields from test case %q", buildFlags, tt.name)
			}
		})
	}
}

func TestGetBuildFlagsAndSummary(t *testing.T) {
	buildFlags = &Info{Name: "flickerctl", Time: "2025-04-13", Commit: "abcdef123", Version: "v1.0.0"}

	flags := GetBuildFlags()
	if flags.Version != "v1.0.0" {
		t.Errorf("GetBuildFlags().Version = %q, want v1.0.0", flags.Version)
	}

	summary := flags.Summary()
	for _, want := range []string{"flickerctl", "v1.0.0", "abcdef123", "2025-04-13"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}
}
