package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/config"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "streamfluency",
	Short: "Dual-subtitle language learning companion",
	Long: `StreamFluency shows native and learning-language subtitles side by side,
navigates a video cue by cue and keeps a vocabulary list in sync across
every running instance.

Settings, vocabulary and backups live in local storage, captions come from
a directory, a YouTube timed-text endpoint or an embedded ffmpeg stream.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.NewLogger(verbose)
	},
}

// runs the root command, SIGINT and SIGTERM cancel the command context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Config file path (or set "+config.EnvConfigPath+")")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Log.Verbose && !verbose {
		logger = logging.NewLogger(true)
	}
	return cfg, nil
}

// builds the full service graph, callers must Close it
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}

// runs fn against a freshly built app and closes it afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warnw("Failed to close cleanly", "error", cerr)
		}
	}()
	return fn(ctx, a)
}
