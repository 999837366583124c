package infra

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/script"
)

// Scheduled task registration (runs the restart script once, shortly after now)
const scheduleTaskTemplate = `$action = New-ScheduledTaskAction -Execute 'powershell.exe' -Argument {{ps .Argument}}
$trigger = New-ScheduledTaskTrigger -Once -At ((Get-Date).AddMilliseconds({{.DelayMs}}))
$settings = New-ScheduledTaskSettingsSet -AllowStartIfOnBatteries -DontStopIfGoingOnBatteries -StartWhenAvailable
Register-ScheduledTask -TaskName {{ps .TaskName}} -Action $action -Trigger $trigger -Settings $settings -Force | Out-Null`

type scheduleConfig struct {
	Argument string
	TaskName string
	DelayMs  int64
}

// CommandRunner starts external commands. Swapped out in tests.
type CommandRunner interface {
	// Start starts cmd and releases it without waiting.
	Start(cmd *exec.Cmd) error

	// CombinedOutput runs cmd to completion.
	CombinedOutput(cmd *exec.Cmd) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Start(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func (execRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	return cmd.CombinedOutput()
}

// ScriptLauncher implements domain.Launcher for both OS families.
type ScriptLauncher struct {
	family domain.OSFamily
	delay  time.Duration
	debug  bool
	runner CommandRunner
	logger *zap.Logger
}

// NewScriptLauncher creates a launcher for the platform. delay is how far in
// the future the Windows task fires.
func NewScriptLauncher(platform *PlatformConfig, delay time.Duration, debug bool, logger *zap.Logger) *ScriptLauncher {
	return NewScriptLauncherWithRunner(platform.Family, delay, debug, execRunner{}, logger)
}

// NewScriptLauncherWithRunner creates a launcher with a custom runner (for testing).
func NewScriptLauncherWithRunner(family domain.OSFamily, delay time.Duration, debug bool, runner CommandRunner, logger *zap.Logger) *ScriptLauncher {
	return &ScriptLauncher{
		family: family,
		delay:  delay,
		debug:  debug,
		runner: runner,
		logger: logger,
	}
}

// Launch hands the restart script to the OS.
func (l *ScriptLauncher) Launch(ctx context.Context, rs *domain.RestartScript) error {
	if l.family == domain.FamilyWindows {
		return l.schedule(ctx, rs)
	}
	return l.detach(rs)
}

// detach spawns the script in its own session so it outlives the browser,
// which kills this host when it quits.
func (l *ScriptLauncher) detach(rs *domain.RestartScript) error {
	// No CommandContext: cancelling the request must not kill the script
	cmd := exec.Command("/bin/sh", rs.Path)
	cmd.Dir = filepath.Dir(rs.Path)
	cmd.SysProcAttr = backgroundAttr()

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := l.runner.Start(cmd); err != nil {
		return fmt.Errorf("failed to start restart script: %w", err)
	}

	l.logger.Info("restart script detached", zap.String("script", rs.Path))
	return nil
}

// schedule registers the script as a one-shot scheduled task. A child spawned
// directly would die with the browser's job object during shutdown.
func (l *ScriptLauncher) schedule(ctx context.Context, rs *domain.RestartScript) error {
	content, err := l.generateScheduleCommand(rs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrScheduleFailed, err)
	}

	cmd := exec.CommandContext(ctx, "powershell.exe", "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", content)
	cmd.SysProcAttr = backgroundAttr()
	out, err := l.runner.CombinedOutput(cmd)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: task %s: %s", domain.ErrScheduleFailed, rs.TaskName, msg)
	}

	l.logger.Info("restart task registered",
		zap.String("task", rs.TaskName),
		zap.String("script", rs.Path),
		zap.Duration("delay", l.delay))
	return nil
}

// generateScheduleCommand renders the PowerShell registration snippet.
func (l *ScriptLauncher) generateScheduleCommand(rs *domain.RestartScript) (string, error) {
	if rs.TaskName == "" {
		return "", fmt.Errorf("restart script %s has no task name", rs.Path)
	}

	argument := "-NoProfile -ExecutionPolicy Bypass "
	if !l.debug {
		argument += "-WindowStyle Hidden "
	}
	argument += `-File "` + rs.Path + `"`

	tmpl, err := template.New("schedule").Funcs(template.FuncMap{
		"ps": script.QuotePowerShell,
	}).Parse(scheduleTaskTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse schedule template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, scheduleConfig{
		Argument: argument,
		TaskName: rs.TaskName,
		DelayMs:  l.delay.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute schedule template: %w", err)
	}
	return buf.String(), nil
}

// Ensure ScriptLauncher implements domain.Launcher.
var _ domain.Launcher = (*ScriptLauncher)(nil)
