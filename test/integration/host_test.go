//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nativehost/internal/config"
	"github.com/eliteGoblin/focusd/nativehost/internal/dispatch"
	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/infra"
	"github.com/eliteGoblin/focusd/nativehost/internal/nativemsg"
	"github.com/eliteGoblin/focusd/nativehost/internal/prefs"
	"github.com/eliteGoblin/focusd/nativehost/internal/script"
	"github.com/eliteGoblin/focusd/nativehost/internal/usecase"
)

// recordingRunner keeps detached scripts instead of starting them, so a test
// can run them in the foreground.
type recordingRunner struct {
	mu      sync.Mutex
	scripts []string
}

func (r *recordingRunner) Start(cmd *exec.Cmd) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = append(r.scripts, cmd.Args[len(cmd.Args)-1])
	return nil
}

func (r *recordingRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	return nil, nil
}

func (r *recordingRunner) Scripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.scripts...)
}

// testHost is the native host wired the way main wires it, rooted at a temp dir.
type testHost struct {
	platform   *infra.PlatformConfig
	hooks      *infra.FileHookStore
	runner     *recordingRunner
	dispatcher *dispatch.Dispatcher
}

func newTestHost(root string, debug bool) *testHost {
	cfg := config.Default()
	cfg.HookDir = filepath.Join(root, "hooks")
	cfg.ScheduleDelay = config.Duration{}
	cfg.LockAttempts = 3
	cfg.LockInterval = config.Duration{Duration: 10 * time.Millisecond}
	cfg.Debug = debug
	Expect(cfg.Validate()).To(Succeed())

	platform := infra.DetectPlatformFor(runtime.GOOS, cfg)
	platform.HomeDir = root
	platform.FirefoxDir = filepath.Join(root, "firefox")

	logger := zap.NewNop()
	inspector := infra.NewProcessInspector()
	hooks := infra.NewFileHookStore(platform)
	backend := script.ForFamily(platform.Family)

	generator, err := script.NewGenerator(backend, hooks, script.Options{
		Prefix:        platform.HookPrefix,
		LockAttempts:  cfg.LockAttempts,
		LockInterval:  cfg.LockInterval.Duration,
		ScheduleDelay: cfg.ScheduleDelay.Duration,
	})
	Expect(err).NotTo(HaveOccurred())

	runner := &recordingRunner{}
	orchestrator := usecase.NewOrchestrator(
		infra.NewBrowserProbe(platform, inspector, logger),
		generator,
		infra.NewScriptLauncherWithRunner(platform.Family, 0, debug, runner, logger),
		prefs.NewMutator(hooks, backend, logger),
		infra.NewFileGuard(platform.HookDir),
		usecase.Options{Debug: debug},
		logger,
	)

	registry := dispatch.NewRegistry(dispatch.OrchestratorHandlers(orchestrator)...)
	registry.Alias(dispatch.LegacyRestartCmd, usecase.CmdRestart)
	builtins := dispatch.NewBuiltins(dispatch.BuiltinOptions{
		Version:   "test",
		HomeDir:   root,
		GOOS:      runtime.GOOS,
		Inspector: inspector,
	}, logger)
	for _, h := range builtins.Handlers() {
		registry.Register(h)
	}

	return &testHost{
		platform:   platform,
		hooks:      hooks,
		runner:     runner,
		dispatcher: dispatch.NewDispatcher(registry, logger),
	}
}

// exchange frames msgs as the browser would and decodes the replies.
func (h *testHost) exchange(msgs ...interface{}) []domain.Reply {
	var in bytes.Buffer
	for _, msg := range msgs {
		frame, err := nativemsg.Encode(msg)
		Expect(err).NotTo(HaveOccurred())
		in.Write(frame)
	}

	var out bytes.Buffer
	err := h.dispatcher.Serve(context.Background(), nativemsg.NewReader(&in), nativemsg.NewWriter(&out))
	Expect(err).NotTo(HaveOccurred())

	reader := nativemsg.NewReader(&out)
	replies := make([]domain.Reply, 0, len(msgs))
	for range msgs {
		payload, err := reader.Next()
		Expect(err).NotTo(HaveOccurred())
		var reply domain.Reply
		Expect(json.Unmarshal(payload, &reply)).To(Succeed())
		replies = append(replies, reply)
	}
	return replies
}

func (h *testHost) send(msg interface{}) domain.Reply {
	return h.exchange(msg)[0]
}

// runScript runs a restart script in the foreground and returns its exit code.
func runScript(path string) int {
	cmd := exec.Command("/bin/sh", path)
	cmd.Dir = filepath.Dir(path)
	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	Expect(err).NotTo(HaveOccurred())
	return 0
}
