package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/video"
)

var effectCmd = &cobra.Command{
	Use:   "effect [video_file] [resize|speed|color]",
	Short: "Apply a single effect to a video",
	Long: `Re-encode a video with one effect applied.

  resize  scale to --width and/or --height (a missing side keeps the aspect ratio)
  speed   play back --factor times faster; audio pitch is preserved
  color   multiply each RGB channel by --factor

Examples:
  captionator effect clip.mp4 resize --width 640
  captionator effect clip.mp4 speed --factor 2 -o fast.mp4
  captionator effect clip.mp4 color --factor 1.3`,
	Args: cobra.ExactArgs(2),
	RunE: runEffect,
}

func init() {
	rootCmd.AddCommand(effectCmd)

	effectCmd.Flags().Int("width", 0, "Target width in pixels (resize)")
	effectCmd.Flags().Int("height", 0, "Target height in pixels (resize)")
	effectCmd.Flags().Float64("factor", 1.0, "Speed or colour factor (speed, color)")
}

func runEffect(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	effect := video.Effect(strings.ToLower(args[1]))

	params, err := effectParams(cmd.Flags())
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		ext := filepath.Ext(inputPath)
		outputPath = strings.TrimSuffix(inputPath, ext) + "_" + string(effect) + ext
	}

	logger.Infow("Applying effect",
		"input", inputPath,
		"output", outputPath,
		"effect", effect,
	)

	processor := newToolkit(cfg).video
	err = track(cmd.Context(), cfg, job.TypeEffect, inputPath, map[string]any{"effect": effect, "params": params},
		func(ctx context.Context) (any, error) {
			if err := processor.ApplyEffect(ctx, inputPath, outputPath, effect, params); err != nil {
				return nil, err
			}
			return job.OutputResult{OutputPath: outputPath}, nil
		})
	if err != nil {
		return fmt.Errorf("effect failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Effect applied successfully: %s\n", absOutput)
	return nil
}

// effectParams leaves unset flags nil so the effect applies its defaults.
func effectParams(flags *pflag.FlagSet) (video.EffectParams, error) {
	var params video.EffectParams
	if flags.Changed("width") {
		w, err := flags.GetInt("width")
		if err != nil {
			return params, err
		}
		params.Width = &w
	}
	if flags.Changed("height") {
		h, err := flags.GetInt("height")
		if err != nil {
			return params, err
		}
		params.Height = &h
	}
	if flags.Changed("factor") {
		f, err := flags.GetFloat64("factor")
		if err != nil {
			return params, err
		}
		params.Factor = &f
	}
	return params, nil
}
