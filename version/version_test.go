package version

import (
	"strings"
	"testing"
	"time"
)

func saveAndRestore() func() {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	return func() {
		Version = origVersion
		GitCommit = origCommit
		BuildTime = origBuildTime
	}
}

func TestGetVersionInfo_Defaults(t *testing.T) {
	defer saveAndRestore()()
	Version = "dev"
	GitCommit = ""
	BuildTime = ""

	info := GetVersionInfo()
	if info == nil {
		t.Fatal("expected non-nil Info")
	}
	if info.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", info.Version)
	}
	if len(info.GitCommit) > 7 {
		t.Errorf("commit should be truncated to 7 chars, got %q", info.GitCommit)
	}
}

func TestGetVersionInfo_LdflagsWin(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = "abcdef0123456"
	BuildTime = "2026-01-15T10:30:00Z"

	info := GetVersionInfo()
	if info.GitCommit != "abcdef0" {
		t.Errorf("expected truncated commit 'abcdef0', got %q", info.GitCommit)
	}
	want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	if !info.BuildDate.Equal(want) {
		t.Errorf("expected build date %v, got %v", want, info.BuildDate)
	}
}

func TestGetVersionInfo_BadBuildTime(t *testing.T) {
	defer saveAndRestore()()
	BuildTime = "yesterday"
	GitCommit = "abc1234"

	info := GetVersionInfo()
	if info.GitCommit != "abc1234" {
		t.Errorf("expected commit abc1234, got %q", info.GitCommit)
	}
}

func TestGetShortVersion(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = "abc1234"

	got := GetShortVersion()
	if !strings.HasPrefix(got, "1.2.0-abc1234") {
		t.Errorf("expected prefix '1.2.0-abc1234', got %q", got)
	}
}

func TestGetFullVersion(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	GitCommit = "abc1234"
	BuildTime = "2026-01-15T10:30:00Z"

	got := GetFullVersion()
	if !strings.HasPrefix(got, GetShortVersion()) {
		t.Errorf("full version %q should start with short version", got)
	}
	if !strings.Contains(got, "(built 2026-01-15T10:30:00Z)") {
		t.Errorf("expected build date in %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.2.0"
	if got := UserAgent(); got != "emhttp/1.2.0" {
		t.Errorf("expected emhttp/1.2.0, got %q", got)
	}
}
