package domain

import "context"

// Invocation is the command line of a running process.
type Invocation struct {
	Exe  string   // Absolute path of the executable
	Args []string // argv, including argv[0]
}

// ProcessInspector reads information about other processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessInspector interface {
	// ParentInvocation returns the command line of this process's parent.
	ParentInvocation() (*Invocation, error)

	// GetParentPID returns the parent process PID.
	GetParentPID() int
}

// BrowserProbe locates the browser binary and validates profiles.
// It is read-only and re-resolves on every call.
type BrowserProbe interface {
	// ResolveBrowser finds the binary to relaunch. Returns ErrBrowserNotFound
	// (wrapped) when neither the parent process nor the search path has it.
	ResolveBrowser(browserCmd string, profile Profile) (*BrowserCommand, error)

	// ValidateProfile reports whether path is a directory holding the marker file.
	ValidateProfile(path string) bool

	// ResolveAutoProfile finds the directory of the profile currently in use.
	ResolveAutoProfile() (string, bool)

	// Family returns the OS family the probe answers for.
	Family() OSFamily

	// ExpandHome expands a leading ~ in path.
	ExpandHome(path string) string
}

// HookStore is the append-only directory of pending hooks.
type HookStore interface {
	// Enqueue writes a new hook for phase, creating the directory if needed.
	Enqueue(phase HookPhase, body []byte) (*Hook, error)

	// Pending returns the hooks of phase, oldest modification time first.
	Pending(phase HookPhase) ([]Hook, error)

	// Glob returns the filename pattern matching hooks of phase.
	Glob(phase HookPhase) string

	// Dir returns the hook directory.
	Dir() string
}

// PreferenceMutator edits a profile's preference files.
type PreferenceMutator interface {
	// ApplyLive rewrites user.js immediately.
	ApplyLive(profileDir string, edits []PreferenceEdit) (*EditResult, error)

	// ScheduleDeferred enqueues the prefs.js rewrite as a pre-restart hook.
	ScheduleDeferred(profileDir string, edits []PreferenceEdit) (*EditResult, error)
}

// ScriptBuilder renders and writes a restart script.
type ScriptBuilder interface {
	Build(plan RestartPlan) (*RestartScript, error)
}

// RestartPlan is the input of a restart script: which lock to wait on,
// which hooks to drain and what to relaunch.
type RestartPlan struct {
	Lock    *LockMarker // nil when the profile could not be resolved
	Browser BrowserCommand
	Debug   bool
}

// Launcher hands a restart script to the operating system.
type Launcher interface {
	// Launch starts or schedules the script. It returns once the OS owns it.
	Launch(ctx context.Context, script *RestartScript) error
}

// Guard serializes restart-class commands across host invocations.
type Guard interface {
	Do(fn func() error) error
}
