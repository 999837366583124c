// Package main is the native messaging host the browser extension talks to.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/nativehost/internal/config"
	"github.com/eliteGoblin/focusd/nativehost/internal/dispatch"
	"github.com/eliteGoblin/focusd/nativehost/internal/domain"
	"github.com/eliteGoblin/focusd/nativehost/internal/infra"
	"github.com/eliteGoblin/focusd/nativehost/internal/nativemsg"
	"github.com/eliteGoblin/focusd/nativehost/internal/prefs"
	"github.com/eliteGoblin/focusd/nativehost/internal/script"
	"github.com/eliteGoblin/focusd/nativehost/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.5.0"
	Commit    = "dev"
	BuildTime = "unknown"

	// DebugBuild turns on debug logging and keeps consumed hooks ("true" to enable).
	DebugBuild = "false"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nativehost:", err)
		os.Exit(1)
	}
}

// The browser starts the host with the manifest path and extension id as
// arguments (plus --parent-window on Windows), so the root command accepts
// anything and serves.
var rootCmd = &cobra.Command{
	Use:   "nativehost [manifest] [extension-id]",
	Short: "Native messaging host for the browser extension",
	Long: `nativehost answers native messages from the browser extension on stdin/stdout.
Besides file and process helpers it can restart the browser and edit its
preference files, deferring edits that need the browser to be stopped to
hooks run by a detached restart script.`,
	Version:            Version,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE:               runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List pending hooks",
	Long:  `Lists the hooks the next restart will run, oldest first.`,
	RunE:  runHooks,
}

var encodeCmd = &cobra.Command{
	Use:   "encode [key value]...",
	Short: "Write a framed native message to stdout",
	Long: `Builds a JSON object from key/value pairs (or takes --raw JSON) and writes it
with the native messaging length header, for piping into the host:

  nativehost encode cmd version | nativehost`,
	RunE: runEncode,
}

var (
	configPath string
	jsonOutput bool
	hookPhase  string
	rawMessage string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(runtime.GOOS), "Path to the host config file")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	hooksCmd.Flags().StringVar(&hookPhase, "phase", string(domain.PhasePreRestart), "Hook phase to list")
	encodeCmd.Flags().StringVar(&rawMessage, "raw", "", "Encode this JSON document instead of key/value pairs")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(hooksCmd)
	rootCmd.AddCommand(encodeCmd)
}

func loadConfig() (*config.Config, *infra.PlatformConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if DebugBuild == "true" {
		cfg.Debug = true
	}
	return cfg, infra.DetectPlatform(cfg), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, platform, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg, platform)
	defer func() { _ = logger.Sync() }()

	logger.Debug("native host started",
		zap.String("version", Version),
		zap.String("platform", platform.String()),
		zap.Strings("args", args),
		zap.String("hook_dir", platform.HookDir))

	dispatcher, err := buildDispatcher(cfg, platform, logger)
	if err != nil {
		logger.Error("failed to build host", zap.Error(err))
		return err
	}

	// stdout carries frames only; logs go to stderr or the debug log file
	err = dispatcher.Serve(context.Background(), nativemsg.NewReader(os.Stdin), nativemsg.NewWriter(os.Stdout))
	if err != nil {
		logger.Error("serve loop ended", zap.Error(err))
	}
	return err
}

// buildDispatcher wires every component for the running platform.
func buildDispatcher(cfg *config.Config, platform *infra.PlatformConfig, logger *zap.Logger) (*dispatch.Dispatcher, error) {
	inspector := infra.NewProcessInspector()
	probe := infra.NewBrowserProbe(platform, inspector, logger)
	hooks := infra.NewFileHookStore(platform)
	backend := script.ForFamily(platform.Family)

	generator, err := script.NewGenerator(backend, hooks, script.Options{
		Prefix:        platform.HookPrefix,
		LockAttempts:  cfg.LockAttempts,
		LockInterval:  cfg.LockInterval.Duration,
		ScheduleDelay: cfg.ScheduleDelay.Duration,
	})
	if err != nil {
		return nil, err
	}

	orchestrator := usecase.NewOrchestrator(
		probe,
		generator,
		infra.NewScriptLauncher(platform, cfg.ScheduleDelay.Duration, cfg.Debug, logger),
		prefs.NewMutator(hooks, backend, logger),
		infra.NewFileGuard(platform.HookDir),
		usecase.Options{
			ScheduleDelay: cfg.ScheduleDelay.Duration,
			Debug:         cfg.Debug,
		},
		logger,
	)

	registry := dispatch.NewRegistry(dispatch.OrchestratorHandlers(orchestrator)...)
	registry.Alias(dispatch.LegacyRestartCmd, usecase.CmdRestart)

	builtins := dispatch.NewBuiltins(dispatch.BuiltinOptions{
		Version:   Version,
		HomeDir:   platform.HomeDir,
		GOOS:      platform.GOOS,
		Inspector: inspector,
	}, logger)
	for _, h := range builtins.Handlers() {
		registry.Register(h)
	}

	return dispatch.NewDispatcher(registry, logger), nil
}

// createLogger logs warnings to stderr, which the browser shows in its
// console. Debug mode appends everything to the log file instead.
func createLogger(cfg *config.Config, platform *infra.PlatformConfig) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)

	if cfg.Debug {
		if err := os.MkdirAll(filepath.Dir(platform.LogFile), 0700); err == nil {
			config.OutputPaths = []string{platform.LogFile}
			config.ErrorOutputPaths = []string{platform.LogFile, "stderr"}
		}
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("nativehost %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func runHooks(cmd *cobra.Command, args []string) error {
	_, platform, err := loadConfig()
	if err != nil {
		return err
	}

	hooks, err := infra.NewFileHookStore(platform).Pending(domain.HookPhase(hookPhase))
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Pending %s hooks ===\n", hookPhase)
	fmt.Printf("Directory: %s\n", platform.HookDir)
	if len(hooks) == 0 {
		fmt.Println("\nNo pending hooks.")
	}
	for _, h := range hooks {
		fmt.Printf("  %s  %s\n", h.ModTime.Format("2006-01-02 15:04:05"), h.Name)
	}
	fmt.Println("========================")
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	var frame []byte
	var err error

	if rawMessage != "" {
		if !json.Valid([]byte(rawMessage)) {
			return fmt.Errorf("--raw is not valid JSON")
		}
		frame, err = nativemsg.Frame([]byte(rawMessage))
	} else {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected key/value pairs, got %d arguments", len(args))
		}
		msg := make(map[string]string, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			msg[args[i]] = args[i+1]
		}
		frame, err = nativemsg.Encode(msg)
	}
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(frame)
	return err
}
