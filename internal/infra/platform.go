// Package infra implements infrastructure concerns (process, filesystem, hooks, launching).
package infra

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/eliteGoblin/focusd/nativehost/internal/config"
	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// PlatformConfig holds paths and settings derived from the OS and the config file.
type PlatformConfig struct {
	GOOS       string
	Family     domain.OSFamily
	HomeDir    string
	HookDir    string // Per-user directory for hooks and restart scripts
	HookPrefix string
	LogFile    string // Debug log, appended only in debug mode
	FirefoxDir string // Directory holding profiles.ini
	PathVar    string // How the search path variable is spelled in messages
}

// DetectPlatform builds the platform config for the running OS.
func DetectPlatform(cfg *config.Config) *PlatformConfig {
	return DetectPlatformFor(runtime.GOOS, cfg)
}

// DetectPlatformFor builds the platform config for goos (used by tests to
// exercise the other family).
func DetectPlatformFor(goos string, cfg *config.Config) *PlatformConfig {
	home, _ := os.UserHomeDir()
	pc := &PlatformConfig{
		GOOS:       goos,
		Family:     domain.FamilyFor(goos),
		HomeDir:    home,
		HookPrefix: cfg.HookPrefix,
		HookDir:    cfg.HookDir,
		LogFile:    cfg.LogFile,
	}

	switch goos {
	case "windows":
		pc.PathVar = "%PATH%"
		pc.FirefoxDir = filepath.Join(os.Getenv("APPDATA"), "Mozilla", "Firefox")
		if pc.HookDir == "" {
			base := os.Getenv("LOCALAPPDATA")
			if base == "" {
				base = filepath.Join(home, "AppData", "Local")
			}
			pc.HookDir = filepath.Join(base, "tridactyl", "native_hooks")
		}
	case "darwin":
		pc.PathVar = "$PATH"
		pc.FirefoxDir = filepath.Join(home, "Library", "Application Support", "Firefox")
		if pc.HookDir == "" {
			pc.HookDir = filepath.Join(home, "Library", "Application Support", "tridactyl", "native_hooks")
		}
	default:
		pc.PathVar = "$PATH"
		pc.FirefoxDir = filepath.Join(home, ".mozilla", "firefox")
		if pc.HookDir == "" {
			dataHome := os.Getenv("XDG_DATA_HOME")
			if dataHome == "" {
				dataHome = filepath.Join(home, ".local", "share")
			}
			pc.HookDir = filepath.Join(dataHome, "tridactyl", "native_hooks")
		}
	}

	pc.HookDir = ExpandHome(home, pc.HookDir)
	if pc.LogFile == "" {
		pc.LogFile = filepath.Join(pc.HookDir, "nativehost.log")
	}
	pc.LogFile = ExpandHome(home, pc.LogFile)
	return pc
}

// ScriptExt returns the file extension of scripts for the family.
func (pc *PlatformConfig) ScriptExt() string {
	if pc.Family == domain.FamilyWindows {
		return "ps1"
	}
	return "sh"
}

// String returns a human-readable description of the platform.
func (pc *PlatformConfig) String() string {
	switch pc.Family {
	case domain.FamilyWindows:
		return "windows (scheduled task relaunch)"
	case domain.FamilyPOSIX:
		return pc.GOOS + " (detached shell relaunch)"
	default:
		return "unknown"
	}
}
