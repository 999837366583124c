package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/infra"
	"github.com/eliteGoblin/focusd/nativehost/internal/usecase"
)

// Orchestrator is the part of usecase.Orchestrator the dispatcher needs.
type Orchestrator interface {
	Restart(ctx context.Context, profileDir, browserCmd string) domain.Reply
	AddPrefs(ctx context.Context, profileDir string, raw json.RawMessage) domain.Reply
	RemovePrefs(ctx context.Context, profileDir string, raw json.RawMessage) domain.Reply
}

// LegacyRestartCmd is the older name of restart_firefox still sent by some clients.
const LegacyRestartCmd = "win_firefox_restart"

// OrchestratorHandlers returns the restart and preference commands.
func OrchestratorHandlers(o Orchestrator) []Handler {
	return []Handler{
		HandlerFunc(usecase.CmdRestart, func(ctx context.Context, req Request) domain.Reply {
			return o.Restart(ctx, req.ProfileDir, req.BrowserCmd)
		}),
		HandlerFunc(usecase.CmdAddPrefs, func(ctx context.Context, req Request) domain.Reply {
			return o.AddPrefs(ctx, req.ProfileDir, req.Prefs)
		}),
		HandlerFunc(usecase.CmdRemovePrefs, func(ctx context.Context, req Request) domain.Reply {
			return o.RemovePrefs(ctx, req.ProfileDir, req.Prefs)
		}),
	}
}

// Builtins serves the file, environment and process commands of the host.
type Builtins struct {
	version   string
	homeDir   string
	goos      string
	getenv    func(string) string
	inspector domain.ProcessInspector
	logger    *zap.Logger
}

// BuiltinOptions configure Builtins.
type BuiltinOptions struct {
	Version   string
	HomeDir   string
	GOOS      string
	Getenv    func(string) string // Defaults to os.Getenv
	Inspector domain.ProcessInspector
}

// NewBuiltins creates the builtin handlers.
func NewBuiltins(opts BuiltinOptions, logger *zap.Logger) *Builtins {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Builtins{
		version:   opts.Version,
		homeDir:   opts.HomeDir,
		goos:      opts.GOOS,
		getenv:    getenv,
		inspector: opts.Inspector,
		logger:    logger,
	}
}

// Handlers returns every builtin command.
func (b *Builtins) Handlers() []Handler {
	return []Handler{
		HandlerFunc("version", b.handleVersion),
		HandlerFunc("read", b.handleRead),
		HandlerFunc("write", b.handleWrite),
		HandlerFunc("writerc", b.handleWriteRC),
		HandlerFunc("temp", b.handleTemp),
		HandlerFunc("list_dir", b.handleListDir),
		HandlerFunc("mkdir", b.handleMkdir),
		HandlerFunc("move", b.handleMove),
		HandlerFunc("env", b.handleEnv),
		HandlerFunc("run", b.handleRun),
		HandlerFunc("ppid", b.handlePPID),
		HandlerFunc("getconfig", b.handleGetConfig),
		HandlerFunc("getconfigpath", b.handleGetConfigPath),
	}
}

func (b *Builtins) expand(path string) string {
	return infra.ExpandHome(b.homeDir, path)
}

func (b *Builtins) handleVersion(ctx context.Context, req Request) domain.Reply {
	r := domain.Info(req.Cmd)
	r.Version = b.version
	return r
}

func (b *Builtins) handleRead(ctx context.Context, req Request) domain.Reply {
	data, err := os.ReadFile(b.expand(req.File))
	if errors.Is(err, os.ErrNotExist) {
		return domain.Failure(req.Cmd, 2, err)
	}
	if err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	return domain.Success(req.Cmd, string(data))
}

func (b *Builtins) handleWrite(ctx context.Context, req Request) domain.Reply {
	if err := os.WriteFile(b.expand(req.File), []byte(req.Content), 0644); err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	return domain.Success(req.Cmd, "")
}

func (b *Builtins) handleWriteRC(ctx context.Context, req Request) domain.Reply {
	path := b.expand(req.File)
	if _, err := os.Stat(path); err == nil && !req.Force {
		return domain.Failuref(req.Cmd, 1, "%s already exists", path)
	}
	return b.handleWrite(ctx, req)
}

func (b *Builtins) handleTemp(ctx context.Context, req Request) domain.Reply {
	f, err := os.CreateTemp("", req.Prefix+"*")
	if err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	defer f.Close()

	if _, err := f.WriteString(req.Content); err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	return domain.Success(req.Cmd, f.Name())
}

// handleListDir lists path, or the directory holding path when it is a file.
func (b *Builtins) handleListDir(ctx context.Context, req Request) domain.Reply {
	path := b.expand(req.Path)
	info, err := os.Stat(path)
	isDir := err == nil && info.IsDir()
	if !isDir {
		path = filepath.Dir(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		files = append(files, e.Name())
	}

	r := domain.Success(req.Cmd, "")
	r.IsDir = &isDir
	r.Files = &files
	r.Sep = string(filepath.Separator)
	return r
}

func (b *Builtins) handleMkdir(ctx context.Context, req Request) domain.Reply {
	dir := b.expand(req.Dir)
	if _, err := os.Stat(dir); err == nil && !req.ExistOK {
		return domain.Failuref(req.Cmd, 1, "%s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	return domain.Success(req.Cmd, "")
}

// handleMove renames from to to. With cleanup, a source that could not be
// moved over an existing destination is removed.
func (b *Builtins) handleMove(ctx context.Context, req Request) domain.Reply {
	from, to := b.expand(req.From), b.expand(req.To)

	if info, err := os.Stat(to); err == nil && !info.IsDir() && !req.Overwrite {
		if req.Cleanup {
			if err := os.Remove(from); err != nil {
				b.logger.Warn("failed to clean up move source", zap.String("path", from), zap.Error(err))
			}
		}
		return domain.Failuref(req.Cmd, 1, "%s already exists", to)
	}
	if info, err := os.Stat(to); err == nil && info.IsDir() {
		to = filepath.Join(to, filepath.Base(from))
	}

	if err := os.Rename(from, to); err != nil {
		return domain.Failure(req.Cmd, 2, err)
	}
	return domain.Success(req.Cmd, "")
}

func (b *Builtins) handleEnv(ctx context.Context, req Request) domain.Reply {
	return domain.Success(req.Cmd, b.getenv(req.Var))
}

// handleRun runs command under the platform shell with content on stdin.
// The reply code is the command's exit status.
func (b *Builtins) handleRun(ctx context.Context, req Request) domain.Reply {
	var cmd *exec.Cmd
	if b.goos == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/c", req.Command)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", req.Command)
	}
	cmd.Dir = b.homeDir
	cmd.Stdin = strings.NewReader(req.Content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return domain.Failure(req.Cmd, -1, fmt.Errorf("failed to run command: %w", err))
		}
		code = exitErr.ExitCode()
	}

	b.logger.Debug("command finished",
		zap.String("command", req.Command),
		zap.Int("code", code),
		zap.String("stderr", stderr.String()))

	r := domain.Success(req.Cmd, stdout.String())
	r.Code = &code
	if code != 0 {
		r.Error = strings.TrimSpace(stderr.String())
	}
	return r
}

func (b *Builtins) handlePPID(ctx context.Context, req Request) domain.Reply {
	ppid := os.Getppid()
	if b.inspector != nil {
		ppid = b.inspector.GetParentPID()
	}
	return domain.Success(req.Cmd, strconv.Itoa(ppid))
}

// ConfigPaths returns the tridactylrc locations in lookup order.
func (b *Builtins) ConfigPaths() []string {
	configHome := b.getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(b.homeDir, ".config")
	}
	return []string{
		filepath.Join(configHome, "tridactyl", "tridactylrc"),
		filepath.Join(b.homeDir, ".config", "tridactyl", "tridactylrc"),
		filepath.Join(b.homeDir, ".tridactylrc"),
		filepath.Join(b.homeDir, "_config", "tridactyl", "tridactylrc"),
		filepath.Join(b.homeDir, "_tridactylrc"),
	}
}

func (b *Builtins) findConfig() (string, bool) {
	for _, p := range b.ConfigPaths() {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

func (b *Builtins) handleGetConfigPath(ctx context.Context, req Request) domain.Reply {
	path, ok := b.findConfig()
	if !ok {
		return domain.Failuref(req.Cmd, 1, "no tridactylrc found")
	}
	return domain.Success(req.Cmd, path)
}

func (b *Builtins) handleGetConfig(ctx context.Context, req Request) domain.Reply {
	path, ok := b.findConfig()
	if !ok {
		return domain.Failuref(req.Cmd, 1, "no tridactylrc found")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Failure(req.Cmd, 1, err)
	}
	return domain.Success(req.Cmd, string(data))
}
