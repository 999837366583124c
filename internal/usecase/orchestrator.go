// Package usecase contains application business logic.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/prefs"
)

// Commands handled by the orchestrator.
const (
	CmdRestart     = "restart_firefox"
	CmdAddPrefs    = "add_firefox_prefs"
	CmdRemovePrefs = "remove_firefox_prefs"
)

// DefaultBrowser is relaunched when the request names no browser command.
const DefaultBrowser = "firefox"

// Options configure the orchestrator.
type Options struct {
	ScheduleDelay time.Duration // Reported to the extension as the restart delay
	Debug         bool          // Keep consumed hooks and scripts
}

// Orchestrator coordinates restarts and preference edits.
// Nothing is cached between calls: every request re-resolves the browser and profile.
type Orchestrator struct {
	probe    domain.BrowserProbe
	builder  domain.ScriptBuilder
	launcher domain.Launcher
	mutator  domain.PreferenceMutator
	guard    domain.Guard
	opts     Options
	logger   *zap.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(
	probe domain.BrowserProbe,
	builder domain.ScriptBuilder,
	launcher domain.Launcher,
	mutator domain.PreferenceMutator,
	guard domain.Guard,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		probe:    probe,
		builder:  builder,
		launcher: launcher,
		mutator:  mutator,
		guard:    guard,
		opts:     opts,
		logger:   logger,
	}
}

// Restart schedules a browser restart and replies before it happens.
func (o *Orchestrator) Restart(ctx context.Context, profileDir, browserCmd string) domain.Reply {
	profile, ok := o.profile(profileDir)
	if !ok {
		return invalidProfile(CmdRestart, profile)
	}
	if browserCmd == "" {
		browserCmd = DefaultBrowser
	}

	err := o.guard.Do(func() error {
		browser, err := o.probe.ResolveBrowser(browserCmd, profile)
		if err != nil {
			return err
		}

		plan := domain.RestartPlan{
			Browser: *browser,
			Lock:    o.lockFor(profile),
			Debug:   o.opts.Debug,
		}
		if plan.Lock == nil {
			o.logger.Warn("running profile unknown, restart will not wait for the browser to exit")
		}

		rs, err := o.builder.Build(plan)
		if err != nil {
			return err
		}

		if err := o.launcher.Launch(ctx, rs); err != nil {
			if rmErr := os.Remove(rs.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				o.logger.Warn("failed to remove unused restart script",
					zap.String("script", rs.Path),
					zap.Error(rmErr))
			}
			return err
		}

		o.logger.Info("restart scheduled",
			zap.String("browser", browser.Path),
			zap.Strings("args", browser.Args),
			zap.Bool("from_parent", browser.FromParent),
			zap.String("script", rs.Path))
		return nil
	})
	if err != nil {
		o.logger.Warn("restart failed", zap.String("profile", profile.Dir), zap.Error(err))
		return domain.Failure(CmdRestart, -1, err)
	}

	delay := strconv.FormatFloat(o.opts.ScheduleDelay.Seconds(), 'f', -1, 64)
	return domain.Success(CmdRestart, "Restarting in "+delay+" seconds...")
}

// AddPrefs writes preferences to user.js.
func (o *Orchestrator) AddPrefs(ctx context.Context, profileDir string, raw json.RawMessage) domain.Reply {
	profile, reply, ok := o.explicitProfile(CmdAddPrefs, profileDir)
	if !ok {
		return reply
	}

	edits, err := prefs.ParseAdditions(raw)
	if err != nil {
		return domain.Failure(CmdAddPrefs, -1, err)
	}

	var result *domain.EditResult
	err = o.guard.Do(func() error {
		result, err = o.mutator.ApplyLive(profile.Dir, edits)
		return err
	})
	if err != nil {
		o.logger.Warn("adding preferences failed", zap.String("profile", profile.Dir), zap.Error(err))
		return domain.Failure(CmdAddPrefs, -1, err)
	}

	return domain.Success(CmdAddPrefs,
		"Added "+strconv.Itoa(result.Added)+" preferences to "+result.File+". Restart Firefox to activate.")
}

// RemovePrefs drops preferences from user.js now and from prefs.js on the next restart.
func (o *Orchestrator) RemovePrefs(ctx context.Context, profileDir string, raw json.RawMessage) domain.Reply {
	profile, reply, ok := o.explicitProfile(CmdRemovePrefs, profileDir)
	if !ok {
		return reply
	}

	edits, err := prefs.ParseRemovals(raw)
	if err != nil {
		return domain.Failure(CmdRemovePrefs, -1, err)
	}

	// The hook is enqueued first and withdrawn if user.js cannot be written,
	// so a failed request leaves both files as they were.
	var live, deferred *domain.EditResult
	err = o.guard.Do(func() error {
		if deferred, err = o.mutator.ScheduleDeferred(profile.Dir, edits); err != nil {
			return err
		}
		if live, err = o.mutator.ApplyLive(profile.Dir, edits); err != nil {
			o.withdraw(deferred)
			return err
		}
		return nil
	})
	if err != nil {
		o.logger.Warn("removing preferences failed", zap.String("profile", profile.Dir), zap.Error(err))
		return domain.Failure(CmdRemovePrefs, -1, err)
	}

	return domain.Success(CmdRemovePrefs,
		"Removed "+strconv.Itoa(live.Removed)+" of "+strconv.Itoa(live.Total)+" lines from "+live.File+". "+
			strconv.Itoa(deferred.Removed)+" of "+strconv.Itoa(deferred.Total)+" lines will be removed from "+deferred.File+" on restart.")
}

// withdraw removes the hook a deferred edit enqueued.
func (o *Orchestrator) withdraw(deferred *domain.EditResult) {
	if deferred == nil || deferred.Hook == nil {
		return
	}
	if err := os.Remove(deferred.Hook.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("failed to withdraw prefs hook",
			zap.String("hook", deferred.Hook.Path),
			zap.Error(err))
	}
}

// profile parses and validates the wire value. Auto is always valid here.
func (o *Orchestrator) profile(raw string) (domain.Profile, bool) {
	profile := domain.ParseProfile(raw)
	if profile.IsAuto() {
		return profile, true
	}
	profile.Dir = o.probe.ExpandHome(profile.Dir)
	return profile, o.probe.ValidateProfile(profile.Dir)
}

// explicitProfile is profile for commands that cannot work on "auto".
func (o *Orchestrator) explicitProfile(cmd, raw string) (domain.Profile, domain.Reply, bool) {
	profile, ok := o.profile(raw)
	if profile.IsAuto() {
		return profile, domain.Failuref(cmd, -1,
			"Preferences need an explicit profile directory, '%s' cannot be edited", domain.AutoProfile), false
	}
	if !ok {
		return profile, invalidProfile(cmd, profile), false
	}
	return profile, domain.Reply{}, true
}

// lockFor returns the lock marker to wait on, or nil when the running
// profile cannot be found.
func (o *Orchestrator) lockFor(profile domain.Profile) *domain.LockMarker {
	dir := profile.Dir
	if profile.IsAuto() {
		resolved, ok := o.probe.ResolveAutoProfile()
		if !ok {
			return nil
		}
		dir = resolved
	}
	lock := domain.LockMarkerFor(o.probe.Family(), dir)
	return &lock
}

func invalidProfile(cmd string, profile domain.Profile) domain.Reply {
	return domain.Failuref(cmd, -1, "Invalid profile directory: %s", profile.Dir)
}
