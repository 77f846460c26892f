package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/captioner"
	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/subtitle"
)

var captionCmd = &cobra.Command{
	Use:     "caption [media_file]",
	Aliases: []string{"generate"},
	Short:   "Generate captions for an audio or video file",
	Long: `Transcribe the specified audio or video file and pack the words into
caption lines of at most --max-chars characters.

Video files have their audio extracted first. The audio is split into chunks
and transcribed in parallel with the configured provider. Captions are
written as SRT, VTT or ASS next to the input unless --output is given.

Examples:
  captionator caption video.mp4
  captionator caption podcast.mp3 --format vtt --max-chars 32
  captionator caption video.mp4 --burn --preview
  captionator caption interview.mov -l es -o interview.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runCaption,
}

func init() {
	rootCmd.AddCommand(captionCmd)

	captionCmd.Flags().
		StringP("format", "f", "", "Subtitle format (srt, vtt, ass); defaults to captions.format")
	captionCmd.Flags().
		IntP("max-chars", "m", 0, "Maximum characters per caption line; defaults to captions.max_chars_per_line")
	captionCmd.Flags().
		Bool("burn", false, "Burn the captions into a copy of the video")
	captionCmd.Flags().
		String("video-output", "", "Path of the burned video (default <input>_captioned.<ext>)")
	captionCmd.Flags().
		Bool("preview", false, "Print the generated captions as a table")
}

func runCaption(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]

	formatStr, _ := cmd.Flags().GetString("format")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	burn, _ := cmd.Flags().GetBool("burn")
	videoOutput, _ := cmd.Flags().GetString("video-output")
	preview, _ := cmd.Flags().GetBool("preview")
	outputPath, _ := cmd.Flags().GetString("output")
	lang, _ := cmd.Flags().GetString("language")

	if cmd.Flags().Changed("max-chars") && maxChars <= 0 {
		return fmt.Errorf("%w: --max-chars must be positive, got %d", caption.ErrInvalidArgument, maxChars)
	}

	format, err := captionFormat(formatStr, outputPath, cfg.Captions.Format)
	if err != nil {
		return err
	}

	req := captioner.Request{
		MediaPath:       mediaPath,
		MaxCharsPerLine: maxChars,
		Language:        lang,
		Format:          format,
		OutputPath:      outputPath,
		Burn:            burn,
		VideoOutputPath: videoOutput,
	}
	req = defaultCaptionOutputs(req)

	svc := newToolkit(cfg).captioner(cfg, logger)

	var result *captioner.Result
	err = track(cmd.Context(), cfg, job.TypeCaption, mediaPath, req, func(ctx context.Context) (any, error) {
		res, err := svc.Caption(ctx, req)
		if err != nil {
			return nil, err
		}
		result = res
		return job.CaptionResult{
			SubtitlePath: res.SubtitlePath,
			VideoPath:    res.VideoPath,
			Language:     res.Language,
			Cues:         len(res.Cues),
			Duration:     res.Duration.Seconds(),
		}, nil
	})
	if err != nil {
		return fmt.Errorf("captioning failed: %w", err)
	}

	if preview {
		fmt.Println(cueTable(result.Cues))
	}

	absOutput, _ := filepath.Abs(result.SubtitlePath)
	fmt.Printf("Captions generated successfully: %s\n", absOutput)
	fmt.Printf("  Cues: %d\n", len(result.Cues))
	fmt.Printf("  Words: %d\n", result.Words)
	if result.Language != "" {
		fmt.Printf("  Language: %s\n", result.Language)
	}
	fmt.Printf("  Duration: %s\n", result.Duration.String())
	if result.VideoPath != "" {
		absVideo, _ := filepath.Abs(result.VideoPath)
		fmt.Printf("  Video: %s\n", absVideo)
	}

	return nil
}

// captionFormat prefers --format, then the extension of --output, then the
// configured default.
func captionFormat(flag, outputPath, fallback string) (subtitle.Format, error) {
	if flag != "" {
		return subtitle.ParseFormat(flag)
	}
	if outputPath != "" && filepath.Ext(outputPath) != "" {
		return subtitle.GetFormatFromExtension(outputPath), nil
	}
	return subtitle.ParseFormat(fallback)
}

// defaultCaptionOutputs places outputs next to the input when no path was
// given.
func defaultCaptionOutputs(req captioner.Request) captioner.Request {
	ext := filepath.Ext(req.MediaPath)
	base := strings.TrimSuffix(req.MediaPath, ext)
	if req.OutputPath == "" {
		req.OutputPath = base + subtitle.GetExtensionForFormat(req.Format)
	}
	if req.Burn && req.VideoOutputPath == "" {
		req.VideoOutputPath = base + "_captioned" + ext
	}
	return req
}

func cueTable(cues []caption.Cue) string {
	rows := make([][]string, len(cues))
	for i, c := range cues {
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			formatSeconds(c.Start.Seconds()),
			formatSeconds(c.End.Seconds()),
			c.Text,
		}
	}
	return renderTable(
		[]string{"#", "Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
	)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.2fs", s)
}
