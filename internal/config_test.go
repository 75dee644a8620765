package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/packlint/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".packlint.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Cache.ArchiveEnabled() {
		t.Error("archive should be disabled by default")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
app:
  log_level: debug
  log_format: json
lint:
  detection_depth: 3
  exclude: ["data/ns/function/tmp/**"]
  default_visibility: private
  output_define: ["ns:test/probe"]
versions:
  enabled: false
  timeout: 2s
`)
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("log format = %q, want %q", cfg.App.LogFormat, LogFormatJSON)
	}
	if cfg.Lint.DetectionDepth != 3 {
		t.Errorf("detection depth = %d, want 3", cfg.Lint.DetectionDepth)
	}
	if cfg.Lint.DefaultVisibility.Mode != VisibilityPrivate {
		t.Errorf("visibility = %q, want %q", cfg.Lint.DefaultVisibility.Mode, VisibilityPrivate)
	}
	if cfg.Versions.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", cfg.Versions.Timeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.Dir != ".cache" || cfg.Lint.GCThreshold != 500 {
		t.Errorf("defaults lost: %+v %+v", cfg.Cache, cfg.Lint)
	}
}

func TestLoad_VisibilityPatterns(t *testing.T) {
	p := writeConfig(t, "lint:\n  default_visibility: [\"ns:api/**\", \"ns:test/*\"]\n")
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatal(err)
	}
	got := strings.Join(cfg.Lint.DefaultVisibility.Patterns, ",")
	if want := "ns:api/**,ns:test/*"; got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
	if cfg.Lint.DefaultVisibility.Mode != "" {
		t.Errorf("mode = %q, want empty", cfg.Lint.DefaultVisibility.Mode)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("PACKLINT_TEST_CACHE", "/tmp/state")
	p := writeConfig(t, "cache:\n  dir: ${PACKLINT_TEST_CACHE}\n")
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Dir != "/tmp/state" {
		t.Errorf("got = %q, want %q", cfg.Cache.Dir, "/tmp/state")
	}
}

func TestLoadIfExists_MissingFileKeepsDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	found, err := pkgconfig.LoadIfExists(filepath.Join(t.TempDir(), "absent.yaml"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if cfg.Lint.DetectionDepth != 1 {
		t.Errorf("detection depth = %d, want 1", cfg.Lint.DetectionDepth)
	}
}

func TestConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log format", func(c *Config) { c.App.LogFormat = "xml" }},
		{"negative depth", func(c *Config) { c.Lint.DetectionDepth = -1 }},
		{"zero gc threshold", func(c *Config) { c.Lint.GCThreshold = 0 }},
		{"visibility mode", func(c *Config) { c.Lint.DefaultVisibility.Mode = "secret" }},
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }},
		{"archive without prefix", func(c *Config) {
			c.Cache.ArchiveDir = "/tmp/archives"
			c.Cache.KeyPrefix = ""
		}},
		{"versions without url", func(c *Config) { c.Versions.URL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_RejectsMappingVisibility(t *testing.T) {
	p := writeConfig(t, "lint:\n  default_visibility:\n    mode: public\n")
	if err := pkgconfig.Load(p, NewDefaultConfig()); err == nil {
		t.Fatal("expected error for mapping visibility")
	}
}
