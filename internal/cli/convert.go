package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/render"
	"github.com/mgpai22/captionator/internal/subtitle"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input] [output]",
	Short: "Convert a subtitle file to another format",
	Long: `Read an SRT, VTT or ASS file and write it in the format named by the
output file's extension. ASS output uses the [render] style from the config.

Examples:
  captionator convert movie.srt movie.vtt
  captionator convert talk.vtt talk.ass`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath, outputPath := args[0], args[1]

	logger.Infow("Converting subtitles", "input", inputPath, "output", outputPath)

	sub, err := subtitle.Convert(inputPath, outputPath, render.StyleFromConfig(cfg.Render))
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles converted successfully: %s\n", absOutput)
	fmt.Printf("  Format: %s\n", sub.Format)
	fmt.Printf("  Entries: %d\n", len(sub.Entries))
	return nil
}
