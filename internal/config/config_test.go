package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if !cfg.Detection.Enabled {
		t.Error("detection should default to enabled")
	}
	if cfg.Detection.MinChars != 6 {
		t.Errorf("MinChars = %d, want 6", cfg.Detection.MinChars)
	}
	if cfg.Detection.CoalesceWindow() != 300*time.Millisecond {
		t.Errorf("CoalesceWindow = %v", cfg.Detection.CoalesceWindow())
	}
	if cfg.Annotation.Tool != "provmark" {
		t.Errorf("Tool = %q", cfg.Annotation.Tool)
	}
	if cfg.Annotation.Cooldown() != 2*time.Second {
		t.Errorf("Cooldown = %v", cfg.Annotation.Cooldown())
	}
	if cfg.Annotation.SuppressGrace() != 500*time.Millisecond {
		t.Errorf("SuppressGrace = %v", cfg.Annotation.SuppressGrace())
	}
	if cfg.Clipboard.Poll() != 500*time.Millisecond {
		t.Errorf("Poll = %v", cfg.Clipboard.Poll())
	}
	if cfg.Storage.Path == "" || cfg.IPC.SocketPath == "" {
		t.Error("default storage and socket paths must be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.toml"))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.MinChars != Default().Detection.MinChars {
		t.Errorf("missing file should load defaults, got %+v", cfg.Detection)
	}
	if l.Config() != cfg {
		t.Error("Config() should return the loaded config")
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[detection]
enabled = true
min_chars = 10

[annotation]
tool = "copilot"
identifier = "alice"
cooldown_ms = 5000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.MinChars != 10 {
		t.Errorf("MinChars = %d", cfg.Detection.MinChars)
	}
	if cfg.Annotation.Tool != "copilot" || cfg.Annotation.Identifier != "alice" {
		t.Errorf("annotation = %+v", cfg.Annotation)
	}
	if cfg.Annotation.Cooldown() != 5*time.Second {
		t.Errorf("Cooldown = %v", cfg.Annotation.Cooldown())
	}
	// Untouched sections keep their defaults.
	if cfg.Clipboard.PollMs != 500 {
		t.Errorf("PollMs = %d, want default 500", cfg.Clipboard.PollMs)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "detection:\n  min_chars: 12\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.MinChars != 12 {
		t.Errorf("MinChars = %d", cfg.Detection.MinChars)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"detection": {"min_chars": 8, "enabled": false}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.MinChars != 8 || cfg.Detection.Enabled {
		t.Errorf("detection = %+v", cfg.Detection)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("malformed toml should fail to load")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROVMARK_MIN_CHARS", "42")
	t.Setenv("PROVMARK_AUTHOR", "bob")
	t.Setenv("PROVMARK_TOOL", "cursor")
	t.Setenv("PROVMARK_LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Detection.MinChars != 42 {
		t.Errorf("MinChars = %d", cfg.Detection.MinChars)
	}
	if cfg.Annotation.Identifier != "bob" {
		t.Errorf("Identifier = %q", cfg.Annotation.Identifier)
	}
	if cfg.Annotation.Tool != "cursor" {
		t.Errorf("Tool = %q", cfg.Annotation.Tool)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestEnvAuthorDoesNotOverrideExplicitIdentifier(t *testing.T) {
	t.Setenv("PROVMARK_AUTHOR", "bob")

	cfg := Default()
	cfg.Annotation.Identifier = "alice"
	cfg.ApplyEnvOverrides()

	if cfg.Annotation.Identifier != "alice" {
		t.Errorf("Identifier = %q, want alice", cfg.Annotation.Identifier)
	}
}

func TestEnvOverrideMalformedValueIgnored(t *testing.T) {
	t.Setenv("PROVMARK_MIN_CHARS", "not-a-number")
	t.Setenv("PROVMARK_ENABLED", "maybe")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Detection.MinChars != 6 {
		t.Errorf("MinChars = %d, want unchanged default", cfg.Detection.MinChars)
	}
	if !cfg.Detection.Enabled {
		t.Error("Enabled changed by malformed override")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"negative min chars", func(c *Config) { c.Detection.MinChars = -1 }, "min_chars"},
		{"empty tool", func(c *Config) { c.Annotation.Tool = "" }, "annotation.tool"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad glob", func(c *Config) { c.Watch.IncludePatterns = []string{"[unclosed"} }, "include_patterns"},
		{"negative cooldown", func(c *Config) { c.Annotation.CooldownMs = -5 }, "cooldown_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	l := NewLoader(path)

	cfg := Default()
	cfg.Detection.MinChars = 9
	cfg.Annotation.Identifier = "carol"
	if err := l.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Detection.MinChars != 9 || got.Annotation.Identifier != "carol" {
		t.Errorf("round trip lost values: %+v %+v", got.Detection, got.Annotation)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[detection]\nmin_chars = 6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	l.OnChange(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer l.Stop()

	if err := os.WriteFile(path, []byte("[detection]\nmin_chars = 20\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Detection.MinChars != 20 {
			t.Errorf("reloaded MinChars = %d, want 20", cfg.Detection.MinChars)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatchKeepsPreviousOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[detection]\nmin_chars = 6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	l.OnChange(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer l.Stop()

	if err := os.WriteFile(path, []byte("not [valid"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("callback fired for a reload that should have failed")
	case <-time.After(500 * time.Millisecond):
	}
	if l.Config().Detection.MinChars != 6 {
		t.Errorf("previous config lost: MinChars = %d", l.Config().Detection.MinChars)
	}
}
