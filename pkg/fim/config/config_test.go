package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Root != DefaultPath {
		t.Errorf("Root = %q, want %q", cfg.Root, DefaultPath)
	}
	if cfg.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", cfg.Interval, DefaultInterval)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true by default")
	}
	if cfg.Sink.Endpoint != "" {
		t.Errorf("Sink.Endpoint = %q, want empty by default", cfg.Sink.Endpoint)
	}
	if len(cfg.Exclude) == 0 {
		t.Error("Exclude is empty, want default exclusions")
	}
}

func TestDefaultWorkers_ScalesWithCPUs(t *testing.T) {
	want := 2 * runtime.GOMAXPROCS(0)
	if want > 8 {
		want = 8
	}
	if DefaultWorkers != want {
		t.Errorf("DefaultWorkers = %d, want %d", DefaultWorkers, want)
	}
	if DefaultWorkers < 1 || DefaultWorkers > 8 {
		t.Errorf("DefaultWorkers = %d, want within [1, 8]", DefaultWorkers)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FIM_ROOT", "/tmp/monitored")
	t.Setenv("FIM_INTERVAL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Root != "/tmp/monitored" {
		t.Errorf("Root = %q, want env override", cfg.Root)
	}
	if cfg.Interval != 90*time.Second {
		t.Errorf("Interval = %v, want 90s", cfg.Interval)
	}
}

func TestLoad_IntervalFloor(t *testing.T) {
	t.Setenv("FIM_INTERVAL", "1ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Interval < MinInterval {
		t.Errorf("Interval = %v, below floor %v", cfg.Interval, MinInterval)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		cfg := &Config{Root: t.TempDir()}
		cfg.Baseline.Path = filepath.Join(t.TempDir(), "baseline.json")
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		cfg := &Config{Root: filepath.Join(t.TempDir(), "nope")}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})

	t.Run("root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "f.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := &Config{Root: path}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})
}

func TestConfig_DerivedPaths(t *testing.T) {
	t.Parallel()

	a := &Config{Root: "/data/a"}
	b := &Config{Root: "/data/b"}

	if a.BaselinePath() == b.BaselinePath() {
		t.Error("different roots share a baseline path")
	}
	if a.CachePath() == b.CachePath() {
		t.Error("different roots share a cache path")
	}
	if a.JournalPath() == b.JournalPath() {
		t.Error("different roots share a journal path")
	}

	// The same root always derives the same paths.
	if a.BaselinePath() != (&Config{Root: "/data/a"}).BaselinePath() {
		t.Error("baseline path is not stable for a root")
	}

	// Explicit paths win over derivation.
	c := &Config{Root: "/data/a"}
	c.Baseline.Path = "/explicit/baseline.json"
	if c.BaselinePath() != "/explicit/baseline.json" {
		t.Errorf("BaselinePath() = %q, want explicit path", c.BaselinePath())
	}
}

func TestRootKey(t *testing.T) {
	t.Parallel()

	key := rootKey("/data")
	if len(key) != 12 {
		t.Errorf("rootKey length = %d, want 12", len(key))
	}
	if key != rootKey("/data") {
		t.Error("rootKey is not deterministic")
	}
	if key == rootKey("/other") {
		t.Error("distinct roots share a key")
	}
}

func TestWriteDefault(t *testing.T) {
	orig := os.Getenv("XDG_CONFIG_HOME")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(func() {
		os.Setenv("XDG_CONFIG_HOME", orig)
		xdg.Reload()
	})

	if err := WriteDefault(); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ConfigDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("config file unreadable: %v", err)
	}
	if !strings.Contains(string(data), "root:") {
		t.Error("default config missing root key")
	}
}
