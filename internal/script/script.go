// Package script generates the platform-native restart script and the
// deferred preference hooks it runs.
//
// A restart script always moves through the same phases:
//
//	prologue -> wait (lock marker) -> hooks -> relaunch -> cleanup
//
// A lock that never clears ends the script inside the wait phase, so neither
// hooks nor the relaunch run. Each PlatformScript backend supplies one named
// template per phase; the phase order lives here only.
package script

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
)

// Phases in execution order. Every backend defines a template per phase.
var Phases = []string{"prologue", "wait", "hooks", "relaunch", "cleanup"}

// RestartLogName is the file in the hook directory where scripts leave messages.
const RestartLogName = "restart.log"

// PlatformScript is the shell-specific half of script generation.
type PlatformScript interface {
	// Family returns the OS family the backend targets.
	Family() domain.OSFamily

	// Ext returns the script file extension without the dot.
	Ext() string

	// Templates returns the template source defining every phase.
	Templates() string

	// Quote returns s as a literal string of the target shell.
	Quote(s string) string

	// PrefsHook renders a hook that drops every line of prefsPath containing
	// one of keys, then appends lines.
	PrefsHook(prefsPath string, keys, lines []string) ([]byte, error)

	// Base returns the last element of a path of the target OS.
	Base(path string) string

	// Preamble returns the bytes every script file of the backend starts with.
	Preamble() []byte
}

// ForFamily returns the backend for family.
func ForFamily(family domain.OSFamily) PlatformScript {
	if family == domain.FamilyWindows {
		return Windows{}
	}
	return POSIX{}
}

// Options tune the generated scripts.
type Options struct {
	Prefix        string        // Tag of generated file names
	LockAttempts  int           // Lock polls before giving up
	LockInterval  time.Duration // Pause between lock polls
	ScheduleDelay time.Duration // Initial pause (POSIX; Windows uses the task trigger)
}

// view is the data handed to the phase templates.
type view struct {
	HookDir     string
	HookGlob    string
	LogFile     string
	ScriptPath  string
	DebugName   string
	DebugPrefix string
	TaskName    string
	Debug       bool

	Lock       *domain.LockMarker
	Attempts   int
	Interval   string // Seconds, for sleep(1)
	IntervalMs int64
	Delay      string // Seconds, empty for none

	Browser     domain.BrowserCommand
	WindowsArgs string
}

// Generator implements domain.ScriptBuilder.
type Generator struct {
	platform PlatformScript
	hooks    domain.HookStore
	opts     Options
	tmpl     *template.Template
}

// NewGenerator parses the backend templates.
func NewGenerator(platform PlatformScript, hooks domain.HookStore, opts Options) (*Generator, error) {
	if opts.LockAttempts < 1 {
		return nil, fmt.Errorf("lock attempts must be at least 1, got %d", opts.LockAttempts)
	}

	tmpl, err := template.New("restart").Funcs(template.FuncMap{
		"q": platform.Quote,
	}).Parse(platform.Templates())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s templates: %w", platform.Family(), err)
	}
	for _, phase := range Phases {
		if tmpl.Lookup(phase) == nil {
			return nil, fmt.Errorf("%s backend has no %q phase", platform.Family(), phase)
		}
	}

	return &Generator{
		platform: platform,
		hooks:    hooks,
		opts:     opts,
		tmpl:     tmpl,
	}, nil
}

// Build renders the restart script for plan and writes it into the hook directory.
func (g *Generator) Build(plan domain.RestartPlan) (*domain.RestartScript, error) {
	id := uuid.NewString()
	base := g.opts.Prefix + "restart-" + id
	rs := &domain.RestartScript{
		Path: filepath.Join(g.hooks.Dir(), base+"."+g.platform.Ext()),
	}
	if g.platform.Family() == domain.FamilyWindows {
		rs.TaskName = base
	}

	content, err := g.Render(plan, rs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.hooks.Dir(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create hook directory: %w", err)
	}
	if err := os.WriteFile(rs.Path, WithPreamble(g.platform, content), 0700); err != nil {
		return nil, fmt.Errorf("failed to write restart script: %w", err)
	}
	return rs, nil
}

// Render produces the script text for plan without touching the filesystem.
func (g *Generator) Render(plan domain.RestartPlan, rs *domain.RestartScript) ([]byte, error) {
	v := view{
		HookDir:     g.hooks.Dir(),
		HookGlob:    g.hooks.Glob(domain.PhasePreRestart),
		LogFile:     filepath.Join(g.hooks.Dir(), RestartLogName),
		ScriptPath:  rs.Path,
		DebugName:   domain.DebugPrefix + g.platform.Base(rs.Path),
		DebugPrefix: domain.DebugPrefix,
		TaskName:    rs.TaskName,
		Debug:       plan.Debug,
		Lock:        plan.Lock,
		Attempts:    g.opts.LockAttempts,
		Interval:    seconds(g.opts.LockInterval),
		IntervalMs:  g.opts.LockInterval.Milliseconds(),
		Browser:     plan.Browser,
		WindowsArgs: JoinWindowsArgs(plan.Browser.Args),
	}
	if g.opts.ScheduleDelay > 0 {
		v.Delay = seconds(g.opts.ScheduleDelay)
	}

	var buf bytes.Buffer
	for _, phase := range Phases {
		if err := g.tmpl.ExecuteTemplate(&buf, phase, v); err != nil {
			return nil, fmt.Errorf("failed to render %s phase: %w", phase, err)
		}
	}
	return buf.Bytes(), nil
}

// Ensure Generator implements domain.ScriptBuilder.
var _ domain.ScriptBuilder = (*Generator)(nil)

// WithPreamble returns content as it must be written to a script file of platform.
func WithPreamble(platform PlatformScript, content []byte) []byte {
	preamble := platform.Preamble()
	if len(preamble) == 0 || bytes.HasPrefix(content, preamble) {
		return content
	}
	out := make([]byte, 0, len(preamble)+len(content))
	return append(append(out, preamble...), content...)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// QuotePOSIX single-quotes s for /bin/sh.
func QuotePOSIX(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuotePowerShell returns s as a verbatim PowerShell string.
// PowerShell also treats typographic single quotes as delimiters.
func QuotePowerShell(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '‘', '’', '‚', '‛':
			b.WriteRune(r)
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// EscapeWindowsArg quotes one argument using the MSVCRT command line rules.
func EscapeWindowsArg(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\n\v\"") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for _, r := range s {
		switch r {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, 2*slashes+1))
			b.WriteRune('"')
			slashes = 0
		default:
			b.WriteString(strings.Repeat(`\`, slashes))
			slashes = 0
			b.WriteRune(r)
		}
	}
	b.WriteString(strings.Repeat(`\`, 2*slashes))
	b.WriteByte('"')
	return b.String()
}

// JoinWindowsArgs builds a command line tail from args.
func JoinWindowsArgs(args []string) string {
	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = EscapeWindowsArg(a)
	}
	return strings.Join(escaped, " ")
}
