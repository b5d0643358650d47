package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{configPathEnv, braveKeyEnv, googleKeyEnv, googleCXEnv, affiliateTagEnv, addrEnv} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gifted.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
addr: ":9000"
log:
  level: debug
  format: json
search:
  braveKey: from-file
fetch:
  timeout: 3s
  attempts: 2
  browserCookies: true
cache:
  enabled: true
  ttl: 1h
recommend:
  affiliateTag: file-20
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(braveKeyEnv, "from-env")
	t.Setenv(googleCXEnv, "cx")

	got, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Addr = ":9000"
	want.Log = LogConfig{Level: "debug", Format: "json"}
	want.Search = SearchConfig{BraveKey: "from-env", GoogleCX: "cx"}
	want.Fetch.Timeout = 3 * time.Second
	want.Fetch.Attempts = 2
	want.Fetch.BrowserCookies = true
	want.Cache = CacheConfig{Enabled: true, TTL: time.Hour}
	want.Recommend.AffiliateTag = "file-20"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad yaml", "addr: [", "parse config"},
		{"zero attempts", "fetch:\n  attempts: 0\n", "attempts"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad concurrency", "resolve:\n  concurrency: 0\n", "concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing explicit file succeeded")
	}
}
