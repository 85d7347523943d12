// Package config implements scint's configuration surface: a YAML
// file overlaid by environment variables and finally by CLI flags,
// with a small explicitly-named environment variable surface rather
// than a generic PREFIX_FIELD reflection walk, since scint only needs
// three fixed variables rather than a versioned nested schema.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/scint/internal/errs"
)

// CurrentVersion is the only configuration schema version this
// package reads or writes.
const CurrentVersion = "1.0"

type Config struct {
	Version   string          `yaml:"version"`
	Cache     CacheConfig     `yaml:"cache"`
	Install   InstallConfig   `yaml:"install"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Debug     DebugConfig     `yaml:"debug"`
}

type CacheConfig struct {
	Root string `yaml:"root"`
}

type InstallConfig struct {
	Path    string   `yaml:"path"`
	With    []string `yaml:"with"`
	Without []string `yaml:"without"`
	Force   bool     `yaml:"force,omitempty"`
}

type SchedulerConfig struct {
	MaxWorkers    int            `yaml:"max_workers"`
	PerTypeLimits map[string]int `yaml:"per_type_limits"`
}

// DebugConfig holds opt-in diagnostics. Prometheus and PrometheusAddr
// are parsed but nothing reads them; no Prometheus endpoint is served.
type DebugConfig struct {
	Prometheus     bool   `yaml:"prometheus"`
	PrometheusAddr string `yaml:"prometheus_addr,omitempty"`
	Verbose        bool   `yaml:"verbose,omitempty"`
	WatchStaging   bool   `yaml:"watch_staging,omitempty"`
}

// Default returns scint's baked-in defaults, the starting point every
// Load overlays onto.
func Default() Config {
	return Config{
		Version: CurrentVersion,
		Cache:   CacheConfig{Root: DefaultCacheRoot()},
		Install: InstallConfig{Path: "./gems"},
		Scheduler: SchedulerConfig{
			MaxWorkers:    runtime.NumCPU(),
			PerTypeLimits: map[string]int{"build": 1},
		},
		Debug: DebugConfig{PrometheusAddr: ":5001"},
	}
}

// Load reads the YAML file at path (if it exists; a missing file is
// not an error, the same "config file is optional" posture
// configuration.Parse's callers take) over Default(), then applies
// the environment overlay.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, errs.New(errs.KindInstall, "config.Load", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errs.New(errs.KindInstall, "config.Load", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays the environment onto the cache root.
// SCINT_CACHE takes priority over the YAML-configured cache root;
// XDG_CACHE_HOME only affects DefaultCacheRoot's resolution, which is
// re-run here for a config file that left Cache.Root unset. COLUMNS is
// read separately by ProgressWidth; XDG_CONFIG_HOME is not read.
func (c *Config) applyEnv() {
	if v := os.Getenv("SCINT_CACHE"); v != "" {
		c.Cache.Root = v
		return
	}
	if c.Cache.Root == "" {
		c.Cache.Root = DefaultCacheRoot()
	}
}

// DefaultCacheRoot resolves the cache root precedence: SCINT_CACHE,
// then $XDG_CACHE_HOME/scint, then $HOME/.cache/scint.
func DefaultCacheRoot() string {
	if v := os.Getenv("SCINT_CACHE"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "scint")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "scint")
}

// ProgressWidth returns the terminal width hint COLUMNS provides for
// progress rendering, falling back to 80 when unset or
// unparsable.
func ProgressWidth() int {
	if v := os.Getenv("COLUMNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 80
}

// FlagOverlay carries the CLI flag values that take precedence over
// both the YAML file and the environment. Zero values
// mean "flag not passed" and leave the underlying Config field alone.
type FlagOverlay struct {
	Jobs    int
	Path    string
	Force   bool
	With    []string
	Without []string
	Verbose bool
}

// Apply overlays non-zero flag values onto cfg, the last and
// highest-priority layer in the YAML → env → flags chain.
func (f FlagOverlay) Apply(cfg Config) Config {
	if f.Jobs > 0 {
		cfg.Scheduler.MaxWorkers = f.Jobs
	}
	if f.Path != "" {
		cfg.Install.Path = f.Path
	}
	if f.Force {
		cfg.Install.Force = true
	}
	if len(f.With) > 0 {
		cfg.Install.With = f.With
	}
	if len(f.Without) > 0 {
		cfg.Install.Without = f.Without
	}
	if f.Verbose {
		cfg.Debug.Verbose = true
	}
	return cfg
}
