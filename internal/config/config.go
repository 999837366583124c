// Package config loads the native host configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// FileName is the config file looked up next to the tridactylrc.
	FileName = "native.toml"

	// DefaultHookPrefix tags every file the host writes into the hook directory.
	DefaultHookPrefix = "tridactyl-"

	// DefaultLockAttempts bounds the lock-marker poll of restart scripts.
	DefaultLockAttempts = 15

	DefaultLockInterval  = time.Second
	DefaultScheduleDelay = 2 * time.Second
)

// Duration decodes TOML strings like "1500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds every tunable of the host.
type Config struct {
	Debug         bool     `toml:"debug"`
	HookDir       string   `toml:"hook_dir"`
	HookPrefix    string   `toml:"hook_prefix"`
	LogFile       string   `toml:"log_file"`
	ScheduleDelay Duration `toml:"schedule_delay"` // Delay before the restart script starts
	LockAttempts  int      `toml:"lock_attempts"`
	LockInterval  Duration `toml:"lock_interval"`
}

// Default returns the configuration used when no file exists.
// Empty paths are filled in by the platform layer.
func Default() *Config {
	return &Config{
		HookPrefix:    DefaultHookPrefix,
		ScheduleDelay: Duration{DefaultScheduleDelay},
		LockAttempts:  DefaultLockAttempts,
		LockInterval:  Duration{DefaultLockInterval},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the restart script cannot work with.
func (c *Config) Validate() error {
	if c.LockAttempts < 1 {
		return fmt.Errorf("lock_attempts must be at least 1, got %d", c.LockAttempts)
	}
	if c.LockInterval.Duration < 0 {
		return fmt.Errorf("lock_interval must not be negative")
	}
	if c.ScheduleDelay.Duration < 0 {
		return fmt.Errorf("schedule_delay must not be negative")
	}
	if c.HookPrefix == "" {
		c.HookPrefix = DefaultHookPrefix
	}
	// The prefix ends up unquoted in a shell glob
	for _, r := range c.HookPrefix {
		if !isPrefixRune(r) {
			return fmt.Errorf("hook_prefix may only contain letters, digits, '.', '_' and '-', got %q", c.HookPrefix)
		}
	}
	return nil
}

func isPrefixRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}

// DefaultPath returns where the config file lives for the current user.
// Mirrors the tridactylrc lookup: $XDG_CONFIG_HOME, then ~/.config.
func DefaultPath(goos string) string {
	if goos == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tridactyl", FileName)
		}
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "tridactyl", FileName)
}
