package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/architect/internal/agent"
	"github.com/dotcommander/architect/internal/config"
	"github.com/dotcommander/architect/internal/core"
	"github.com/dotcommander/architect/internal/phase/architect"
	"github.com/dotcommander/architect/internal/phase/understanding"
	"github.com/dotcommander/architect/internal/prompt"
	"github.com/dotcommander/architect/internal/storage"
)

var version = "dev"

var (
	// Global flags
	verbose    bool
	logFormat  string
	configPath string
	timeout    time.Duration

	logger = slog.Default()
)

// newCompleter builds the generative client. Tests swap it for a mock.
var newCompleter = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (agent.Completer, error) {
	return agent.New(ctx, cfg.AI, cfg.Limits, logger)
}

// loadConfig reads the explicit config file when one is given, otherwise the
// default locations. Without requireKey the credential may be missing.
var loadConfig = func(path string, requireKey bool) (*config.Config, error) {
	switch {
	case path != "" && requireKey:
		return config.LoadFile(path)
	case path != "":
		return config.LoadLocalFile(path)
	case requireKey:
		return config.Load()
	default:
		return config.LoadLocal()
	}
}

var rootCmd = &cobra.Command{
	Use:   "architect",
	Short: "Turn requirements into a project blueprint",
	Long: `architect drives a generative model through three planning stages:
  1. Vision: a narrative of what the project is
  2. Structure: a folder and file tree for it
  3. Contexts: detailed implementation notes for the most important files

Every session is saved under the output directory, so a failed stage can be
resumed without repeating the ones before it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), logFormat, verbose)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall operation timeout")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// commandContext is cancelled on interrupt or when --timeout elapses.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// app is everything a command needs, wired from configuration.
type app struct {
	store        *storage.FileSystem
	orchestrator *core.Orchestrator
	engine       *understanding.Engine
	gate         understanding.Gate
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(configPath, true)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	client, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating AI client: %w", err)
	}

	prompts := prompt.NewCache(cfg.Paths.PromptsDir)
	if err := prompts.Preload(); err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	strategy, err := storage.ParseNamingStrategy(cfg.Paths.SessionNaming)
	if err != nil {
		return nil, err
	}

	pipeline := architect.New(client,
		architect.WithPrompts(prompts),
		architect.WithBatchSize(cfg.Limits.ContextBatchSize),
		architect.WithLogger(logger),
	)
	store := storage.NewFileSystem(cfg.Paths.OutputDir)

	logger.Debug("Configuration loaded",
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"output_dir", store.BaseDir())

	return &app{
		store:        store,
		orchestrator: newOrchestrator(cfg, pipeline, store, strategy),
		engine: understanding.New(client,
			understanding.WithPrompts(prompts),
			understanding.WithLogger(logger),
		),
		gate: understanding.NewGate(cfg.Understanding.ReadyThreshold),
	}, nil
}

// newLocalApp wires only the session store, for commands that read saved
// sessions and never reach the generative service.
func newLocalApp() (*app, error) {
	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	strategy, err := storage.ParseNamingStrategy(cfg.Paths.SessionNaming)
	if err != nil {
		return nil, err
	}
	store := storage.NewFileSystem(cfg.Paths.OutputDir)

	return &app{
		store:        store,
		orchestrator: newOrchestrator(cfg, nil, store, strategy),
	}, nil
}

func newOrchestrator(cfg *config.Config, pipeline core.Architect, store *storage.FileSystem, strategy storage.SessionNamingStrategy) *core.Orchestrator {
	return core.New(pipeline, store,
		core.WithLogger(logger.With("component", "orchestrator")),
		core.WithSessionNamer(storage.Namer(strategy)),
		core.WithMaxConcurrency(cfg.Limits.MaxConcurrentSessions),
	)
}
