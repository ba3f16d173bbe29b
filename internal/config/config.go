// Package config handles configuration loading, validation, and hot
// reloading for provmarkd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Detection configuration for the classifier.
	Detection DetectionConfig `toml:"detection" json:"detection" yaml:"detection"`

	// Annotation configuration for the marker writer.
	Annotation AnnotationConfig `toml:"annotation" json:"annotation" yaml:"annotation"`

	// Clipboard configuration for paste detection.
	Clipboard ClipboardConfig `toml:"clipboard" json:"clipboard" yaml:"clipboard"`

	// Watch configuration for the filesystem trigger source.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Storage configuration for the annotation ledger.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// IPC configuration for the editor event socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DetectionConfig configures the coalescing classifier.
type DetectionConfig struct {
	// Enabled gates the whole detection engine.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// MinChars is the minimum trimmed insertion length considered for
	// detection on its own.
	MinChars int `toml:"min_chars" json:"min_chars" yaml:"min_chars"`

	// CharsPerSecond is a sensitivity knob recorded in reasoning text.
	CharsPerSecond float64 `toml:"chars_per_second" json:"chars_per_second" yaml:"chars_per_second"`

	// CoalesceWindowMs is the buffer window for fusing rapid changes.
	CoalesceWindowMs int `toml:"coalesce_window_ms" json:"coalesce_window_ms" yaml:"coalesce_window_ms"`
}

// AnnotationConfig configures the marker writer.
type AnnotationConfig struct {
	// Tool is the generator name written into start blocks.
	Tool string `toml:"tool" json:"tool" yaml:"tool"`

	// Identifier is the ID value written into start blocks. When empty
	// the PROVMARK_AUTHOR environment variable is consulted, then the
	// placeholder "unknown".
	Identifier string `toml:"identifier" json:"identifier" yaml:"identifier"`

	// CooldownMs is the minimum interval between writes to one file.
	CooldownMs int `toml:"cooldown_ms" json:"cooldown_ms" yaml:"cooldown_ms"`

	// SuppressGraceMs is how long a written file stays suppressed
	// after a write completes.
	SuppressGraceMs int `toml:"suppress_grace_ms" json:"suppress_grace_ms" yaml:"suppress_grace_ms"`
}

// ClipboardConfig configures the paste heuristic.
type ClipboardConfig struct {
	// PollMs is the clipboard polling interval.
	PollMs int `toml:"poll_ms" json:"poll_ms" yaml:"poll_ms"`

	// Disabled turns clipboard reads off entirely; paste detection
	// degrades to the intercepted-paste flag.
	Disabled bool `toml:"disabled" json:"disabled" yaml:"disabled"`
}

// WatchConfig configures the filesystem watcher trigger source.
type WatchConfig struct {
	// Paths are directories or files to monitor.
	Paths []string `toml:"paths" json:"paths" yaml:"paths"`

	// IncludePatterns are glob patterns for files to consider. When
	// empty a default source-file set is used.
	IncludePatterns []string `toml:"include_patterns" json:"include_patterns" yaml:"include_patterns"`

	// ExcludePatterns are glob patterns for files to skip.
	ExcludePatterns []string `toml:"exclude_patterns" json:"exclude_patterns" yaml:"exclude_patterns"`

	// DebounceMs is how long a file must be stable before it is
	// treated as externally rewritten.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// StorageConfig configures the annotation ledger.
type StorageConfig struct {
	// Path is the SQLite database location.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Disabled turns the ledger off.
	Disabled bool `toml:"disabled" json:"disabled" yaml:"disabled"`
}

// IPCConfig configures the editor event socket.
type IPCConfig struct {
	// SocketPath is the unix socket (or named pipe base path on
	// Windows) editors connect to.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// LoggingConfig configures diagnostics output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// FilePath, when set, appends logs to a rotating file instead of
	// stderr.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int64 `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
}

// Default returns the default configuration.
func Default() *Config {
	dir := DataDir()
	return &Config{
		Detection: DetectionConfig{
			Enabled:          true,
			MinChars:         6,
			CharsPerSecond:   120,
			CoalesceWindowMs: 300,
		},
		Annotation: AnnotationConfig{
			Tool:            "provmark",
			CooldownMs:      2000,
			SuppressGraceMs: 500,
		},
		Clipboard: ClipboardConfig{
			PollMs: 500,
		},
		Watch: WatchConfig{
			DebounceMs: 1000,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "provmark.db"),
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(dir, "provmarkd.sock"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 50,
		},
	}
}

// DataDir returns the platform-specific provmark data directory.
func DataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "provmark")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		return filepath.Join(appData, "provmark")
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, _ := os.UserHomeDir()
			dataHome = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataHome, "provmark")
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// CoalesceWindow returns the detection window as a duration.
func (d DetectionConfig) CoalesceWindow() time.Duration {
	return time.Duration(d.CoalesceWindowMs) * time.Millisecond
}

// Cooldown returns the annotation cooldown as a duration.
func (a AnnotationConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownMs) * time.Millisecond
}

// SuppressGrace returns the suppression grace as a duration.
func (a AnnotationConfig) SuppressGrace() time.Duration {
	return time.Duration(a.SuppressGraceMs) * time.Millisecond
}

// Poll returns the clipboard polling interval as a duration.
func (c ClipboardConfig) Poll() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

// Debounce returns the watcher debounce as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// ApplyEnvOverrides overlays PROVMARK_* environment variables onto the
// configuration. A missing or malformed variable leaves the file value
// in place.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PROVMARK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Detection.Enabled = b
		}
	}
	if v := os.Getenv("PROVMARK_MIN_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Detection.MinChars = n
		}
	}
	if v := os.Getenv("PROVMARK_AUTHOR"); v != "" && c.Annotation.Identifier == "" {
		c.Annotation.Identifier = v
	}
	if v := os.Getenv("PROVMARK_TOOL"); v != "" {
		c.Annotation.Tool = v
	}
	if v := os.Getenv("PROVMARK_SOCKET"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("PROVMARK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs []string

	if c.Detection.MinChars < 0 {
		errs = append(errs, "detection.min_chars must be non-negative")
	}
	if c.Detection.CoalesceWindowMs < 0 {
		errs = append(errs, "detection.coalesce_window_ms must be non-negative")
	}
	if c.Annotation.Tool == "" {
		errs = append(errs, "annotation.tool must not be empty")
	}
	if c.Annotation.CooldownMs < 0 {
		errs = append(errs, "annotation.cooldown_ms must be non-negative")
	}
	if c.Clipboard.PollMs < 0 {
		errs = append(errs, "clipboard.poll_ms must be non-negative")
	}
	if c.Watch.DebounceMs < 0 {
		errs = append(errs, "watch.debounce_ms must be non-negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not a valid level", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not text or json", c.Logging.Format))
	}
	for _, p := range c.Watch.IncludePatterns {
		if _, err := filepath.Match(p, "probe"); err != nil {
			errs = append(errs, fmt.Sprintf("watch.include_patterns %q: %v", p, err))
		}
	}
	for _, p := range c.Watch.ExcludePatterns {
		if _, err := filepath.Match(p, "probe"); err != nil {
			errs = append(errs, fmt.Sprintf("watch.exclude_patterns %q: %v", p, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
