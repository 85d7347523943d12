package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.MaxWorkers <= 0 {
		t.Errorf("expected a positive default MaxWorkers, got %d", cfg.Scheduler.MaxWorkers)
	}
	if cfg.Scheduler.PerTypeLimits["build"] != 1 {
		t.Errorf("expected default build limit of 1, got %d", cfg.Scheduler.PerTypeLimits["build"])
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scint.yml")
	content := "version: \"1.0\"\ninstall:\n  path: /srv/app/gems\nscheduler:\n  max_workers: 4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Install.Path != "/srv/app/gems" {
		t.Errorf("Install.Path = %q", cfg.Install.Path)
	}
	if cfg.Scheduler.MaxWorkers != 4 {
		t.Errorf("Scheduler.MaxWorkers = %d", cfg.Scheduler.MaxWorkers)
	}
}

func TestEnvOverlayTakesPriorityOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scint.yml")
	os.WriteFile(path, []byte("cache:\n  root: /from/yaml\n"), 0o644)

	t.Setenv("SCINT_CACHE", "/from/env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Root != "/from/env" {
		t.Errorf("Cache.Root = %q, want /from/env", cfg.Cache.Root)
	}
}

func TestDefaultCacheRootPrecedence(t *testing.T) {
	t.Setenv("SCINT_CACHE", "")
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	if got := DefaultCacheRoot(); got != filepath.Join("/xdg/cache", "scint") {
		t.Errorf("DefaultCacheRoot() = %q", got)
	}
}

func TestFlagOverlayOnlyAppliesNonZeroFields(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxWorkers = 8

	overlay := FlagOverlay{Path: "/flag/path"}
	got := overlay.Apply(cfg)

	if got.Install.Path != "/flag/path" {
		t.Errorf("Install.Path = %q", got.Install.Path)
	}
	if got.Scheduler.MaxWorkers != 8 {
		t.Errorf("expected MaxWorkers to be left alone by a zero-value Jobs flag, got %d", got.Scheduler.MaxWorkers)
	}
}

func TestProgressWidthFallsBackWhenColumnsUnset(t *testing.T) {
	t.Setenv("COLUMNS", "")
	if ProgressWidth() != 80 {
		t.Errorf("ProgressWidth() = %d, want 80", ProgressWidth())
	}
}
