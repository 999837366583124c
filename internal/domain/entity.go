// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// OSFamily groups operating systems by how a restart has to be carried out.
type OSFamily string

const (
	// FamilyPOSIX covers Linux, the BSDs and macOS: the restart script is detached directly.
	FamilyPOSIX OSFamily = "posix"
	// FamilyWindows registers the restart script as a one-shot scheduled task.
	FamilyWindows OSFamily = "windows"
)

// FamilyFor maps a GOOS value to its OS family.
func FamilyFor(goos string) OSFamily {
	if goos == "windows" {
		return FamilyWindows
	}
	return FamilyPOSIX
}

// AutoProfile is the sentinel meaning "whatever profile is currently running".
const AutoProfile = "auto"

// ProfileMarker is the file whose presence marks a genuine browser profile.
const ProfileMarker = "times.json"

// Profile is a browser profile directory, or the auto sentinel.
type Profile struct {
	Dir string
}

// ParseProfile builds a Profile from the wire value. A blank value stays
// blank and is never a valid profile; only "auto" selects the running one.
func ParseProfile(raw string) Profile {
	return Profile{Dir: strings.TrimSpace(raw)}
}

// IsAuto reports whether the profile must be resolved from the running browser.
func (p Profile) IsAuto() bool {
	return p.Dir == AutoProfile
}

// BrowserCommand is everything needed to relaunch the browser.
type BrowserCommand struct {
	Name string   // Binary base name, e.g. "firefox"
	Path string   // Resolved absolute path
	Dir  string   // Directory holding the binary
	Args []string // Launch arguments, without the binary itself

	// FromParent is true when Path/Args were read from the running browser process.
	FromParent bool
}

// LockMarker is the profile file that exists while the browser is alive.
type LockMarker struct {
	Path string
	// Exclusive means absence is not a reliable signal; the script must try an
	// exclusive open instead.
	Exclusive bool
}

// LockMarkerFor returns the lock marker of a profile directory for the given OS family.
func LockMarkerFor(family OSFamily, profileDir string) LockMarker {
	if family == FamilyWindows {
		return LockMarker{Path: filepath.Join(profileDir, "parent.lock"), Exclusive: true}
	}
	return LockMarker{Path: filepath.Join(profileDir, "lock")}
}

// HookPhase is the lifecycle point at which a hook runs.
type HookPhase string

const (
	// PhasePreRestart hooks run after the browser exits and before it relaunches.
	PhasePreRestart HookPhase = "pre-restart"
	// PhasePostRestart is reserved; nothing drains it yet.
	PhasePostRestart HookPhase = "post-restart"
)

// DebugPrefix is prepended to consumed hooks and scripts kept under debug mode.
const DebugPrefix = "debug-"

// Hook is a pending single-use script in the hook store.
type Hook struct {
	Path    string
	Name    string
	Phase   HookPhase
	ModTime time.Time
}

// PreferenceEdit is one key of a preference file rewrite.
// A nil Value removes the key without writing a replacement line.
type PreferenceEdit struct {
	Key   string
	Value json.RawMessage
}

// IsRemoval reports whether the edit only drops lines.
func (e PreferenceEdit) IsRemoval() bool {
	return len(e.Value) == 0
}

// EditResult captures what a preference rewrite did to one file.
type EditResult struct {
	File     string
	Removed  int  // Lines dropped because they referenced an edited key
	Added    int  // user_pref lines appended
	Total    int  // Line count of the file before the rewrite
	Deferred bool // True when the rewrite runs later from a pre-restart hook
	Hook     *Hook
}

// RestartScript is a generated wait/hook/relaunch script.
type RestartScript struct {
	Path     string
	TaskName string // Scheduled task name, Windows only
}
