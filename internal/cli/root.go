package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patentrag/internal/config"
	"patentrag/internal/domain"
	"patentrag/internal/logging"
	"patentrag/internal/metrics"
)

type rootOptions struct {
	configPath  string
	verbose     bool
	metricsAddr string
	// quietLogs routes logs away from the terminal (set by the TUI).
	quietLogs bool
}

// loadConfig reads the configuration chosen by --config, or the default
// locations, and validates it.
func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if o.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open builds the application for a command. mutate, when non-nil, adjusts the
// loaded configuration first.
func (o *rootOptions) open(mode generatorMode, mutate func(*config.AppConfig)) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	var logger *zap.Logger
	if o.quietLogs && cfg.Logging.File == "" {
		logger = zap.NewNop()
	} else if logger, err = logging.New(cfg.Logging, o.verbose); err != nil {
		return nil, err
	}

	app, err := NewApp(cfg, logger, metrics.New(), mode)
	if err != nil {
		return nil, err
	}
	if o.metricsAddr != "" {
		app.ServeMetrics(o.metricsAddr)
	}
	return app, nil
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "patentrag",
		Short: "Question answering over patent documents",
		Long: `patentrag indexes patent PDFs and text files into a similarity index
and answers questions with passages retrieved from them.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/patentrag/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newIngestCommand(opts),
		newSearchCommand(opts),
		newAskCommand(opts),
		newPassageCommand(opts),
		newStatsCommand(opts),
		newResetCommand(opts),
		newTUICommand(opts),
	)
	return root
}

// commandError logs the cause of a failed action and returns a short message
// for the terminal. Invalid arguments keep the sentinel so callers can tell
// them apart.
func commandError(app *App, action string, err error) error {
	if errors.Is(err, domain.ErrInvalidArgument) {
		return fmt.Errorf("%s failed: %w", action, domain.ErrInvalidArgument)
	}
	app.Logger.Error(action+" failed", zap.Error(err))
	if errors.Is(err, domain.ErrIndexCorrupted) {
		return fmt.Errorf("%s failed: index is corrupted, re-ingest the documents", action)
	}
	return fmt.Errorf("%s failed", action)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
