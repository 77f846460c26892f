package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "captionator",
	Short: "AI-powered captions and light video editing",
	Long: `Captionator transcribes audio and video with word-level timing and packs
the words into readable caption lines.

Captions can be written as SRT, VTT or ASS, or burned straight into the
video. The same pipeline is available over HTTP with "captionator serve".`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so ffmpeg and provider calls stop promptly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file path (default ~/.config/captionator/config.toml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Language code or name (e.g., en, es, french)")
}

func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	logger, err = newLogger(cfg.Logging, verbose)
	if err != nil {
		return err
	}
	logger.Debugw("Configuration loaded", "path", resolved, "exists", exists)
	return nil
}

func newLogger(opts config.Logging, verbose bool) (*logging.Logger, error) {
	level := opts.Level
	if verbose {
		level = "debug"
	}
	l, err := logging.New(logging.Options{Level: level, Format: opts.Format})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}
