package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/video"
)

var composeCmd = &cobra.Command{
	Use:   "compose [timeline.json]",
	Short: "Render a timeline of clips into one video",
	Long: `Render every item of a JSON timeline onto a shared canvas and join them
in order.

The timeline is either an array of items or an object with a "timeline"
array, in the same shape the /process_video endpoint accepts. Relative
filenames are resolved against the timeline file's directory.

Example timeline:
  [
    {"type": "video", "filename": "intro.mp4", "start": 0, "end": 4},
    {"type": "text", "text": "Chapter one", "duration": 2, "color": "yellow"},
    {"type": "image", "filename": "cover.png", "duration": 3},
    {"type": "video", "filename": "main.mp4", "speed": 1.5, "color": 1.2}
  ]

Examples:
  captionator compose timeline.json
  captionator compose timeline.json -o final.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)
}

func runCompose(cmd *cobra.Command, args []string) error {
	timelinePath := args[0]

	items, err := loadTimeline(timelinePath)
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = strings.TrimSuffix(timelinePath, filepath.Ext(timelinePath)) + ".mp4"
	}

	logger.Infow("Composing timeline",
		"timeline", timelinePath,
		"items", len(items),
		"output", outputPath,
	)

	processor := newToolkit(cfg).video
	err = track(cmd.Context(), cfg, job.TypeCompose, timelinePath, items, func(ctx context.Context) (any, error) {
		if err := processor.Compose(ctx, items, outputPath); err != nil {
			return nil, err
		}
		return job.OutputResult{OutputPath: outputPath}, nil
	})
	if err != nil {
		return fmt.Errorf("composition failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Video composed successfully: %s\n", absOutput)
	fmt.Printf("  Items: %d\n", len(items))
	return nil
}

func loadTimeline(path string) ([]video.TimelineItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}

	var entries []video.TimelineEntry
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Timeline []video.TimelineEntry `json:"timeline"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse timeline %s: %w", path, err)
		}
		entries = wrapped.Timeline
	} else if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse timeline %s: %w", path, err)
	}

	return video.DecodeTimeline(entries, relativeResolver(filepath.Dir(path)))
}

func relativeResolver(dir string) video.Resolver {
	return func(name string) (string, error) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", path)
		}
		return path, nil
	}
}
