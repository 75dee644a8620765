package internal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/archive"
	"github.com/starford/packlint/internal/ci"
	"github.com/starford/packlint/internal/testutil"
)

func testConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.App.LogLevel = slog.LevelError
	cfg.App.LogFormat = LogFormatJSON
	cfg.Versions.Enabled = false
	return cfg
}

func noEnv(string) string { return "" }

func TestRun_ReportsFailure(t *testing.T) {
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "pack"), map[string]string{
		"data/ns/function/bad.mcfunction": "frobnicate\n",
	})
	var out bytes.Buffer

	err := Run(context.Background(),
		WithConfig(testConfig()),
		WithWorkDir(work),
		WithOutput(&out),
		WithGetenv(noEnv))
	if !errors.Is(err, apperr.ErrLintFailed) {
		t.Fatalf("err = %v, want ErrLintFailed", err)
	}
	if !strings.Contains(out.String(), `Unknown command "frobnicate"`) {
		t.Errorf("report missing diagnostic:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(work, ".cache", "checksum.json")); err != nil {
		t.Errorf("checksum store not persisted: %v", err)
	}
}

func TestRun_ForcePass(t *testing.T) {
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "pack"), map[string]string{
		"data/ns/function/bad.mcfunction": "frobnicate\n",
	})
	cfg := testConfig()
	cfg.Lint.ForcePass = true

	err := Run(context.Background(), WithConfig(cfg), WithWorkDir(work), WithOutput(&bytes.Buffer{}), WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("force pass should succeed: %v", err)
	}
}

func TestRun_DebugModeForcesPass(t *testing.T) {
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "pack"), map[string]string{
		"data/ns/function/bad.mcfunction": "frobnicate\n",
	})
	getenv := func(k string) string {
		if k == "RUNNER_DEBUG" {
			return "1"
		}
		return ""
	}
	var out bytes.Buffer
	err := Run(context.Background(), WithConfig(testConfig()), WithWorkDir(work), WithOutput(&out), WithGetenv(getenv))
	if err != nil {
		t.Fatalf("debug mode should succeed: %v", err)
	}
	if !strings.Contains(out.String(), "Test forced pass. Because debug mode") {
		t.Errorf("missing forced pass line:\n%s", out.String())
	}
}

func TestRun_ArchiveRoundTrip(t *testing.T) {
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "pack"), map[string]string{
		"data/ns/function/ok.mcfunction": "say ok\n",
	})
	cfg := testConfig()
	cfg.Cache.ArchiveDir = filepath.Join(t.TempDir(), "archives")

	run := func() {
		t.Helper()
		if err := Run(context.Background(), WithConfig(cfg), WithWorkDir(work), WithOutput(&bytes.Buffer{}), WithGetenv(noEnv)); err != nil {
			t.Fatal(err)
		}
	}
	run()
	entries, err := os.ReadDir(cfg.Cache.ArchiveDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("archives = %v, err = %v", entries, err)
	}

	// A lost state directory comes back from the archive.
	stateDir := filepath.Join(work, ".cache")
	if err := os.RemoveAll(stateDir); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	restoreArchive(context.Background(), &archive.Store{Dir: cfg.Cache.ArchiveDir}, cfg.Cache, ci.Env{Ref: "local"}, stateDir, logger)
	for _, name := range []string{"validation.db", "checksum.json", "results.json"} {
		if _, err := os.Stat(filepath.Join(stateDir, name)); err != nil {
			t.Errorf("%s missing after restore: %v", name, err)
		}
	}
	run()
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNewLogger_DebugOverridesLevel(t *testing.T) {
	l := newLogger(ApplicationConfig{LogLevel: slog.LevelWarn, LogFormat: LogFormatText}, true)
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled in CI debug mode")
	}
	l = newLogger(ApplicationConfig{LogLevel: slog.LevelWarn, LogFormat: LogFormatJSON}, false)
	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}
