package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long: `Write the default configuration as TOML to --config, or to
~/.config/captionator/config.toml when no path is given.

Examples:
  captionator config init
  captionator config init --config ./captionator.toml --force`,
	Args: cobra.NoArgs,
	// the existing file may be the broken one being replaced
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)
		return nil
	},
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and environment
overrides have been applied. API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path := configPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := writeSampleConfig(path, force); err != nil {
		return err
	}

	logger.Debugw("Config written", "path", path)
	fmt.Printf("Config written: %s\n", path)
	return nil
}

func writeSampleConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check config %s: %w", path, err)
		}
	}

	data, err := config.Sample()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out, err := renderConfig(cfg)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func renderConfig(c *config.Config) (string, error) {
	masked := *c
	masked.Transcription.GeminiAPIKey = maskSecret(masked.Transcription.GeminiAPIKey)
	masked.Transcription.OpenAIAPIKey = maskSecret(masked.Transcription.OpenAIAPIKey)

	data, err := toml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "********"
}
