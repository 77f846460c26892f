package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/video"
)

var extractFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"aac":  true,
	"flac": true,
}

var extractCmd = &cobra.Command{
	Use:   "extract [video_file]",
	Short: "Extract audio from a video file",
	Long: `Extract the audio track from a video file into a separate audio file.

Supported output formats: wav, mp3, aac, flac.

Examples:
  captionator extract video.mp4
  captionator extract video.mp4 -o audio.mp3 -f mp3 -b 128k
  captionator extract video.mp4 --format wav --sample-rate 44100 --channels 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := video.DefaultExtractAudioOptions()
	extractCmd.Flags().
		StringP("format", "f", defaults.Format, "Output audio format (wav, mp3, aac, flac)")
	extractCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz (e.g., 16000, 44100, 48000)")
	extractCmd.Flags().
		IntP("channels", "c", defaults.Channels, "Number of audio channels (1=mono, 2=stereo)")
	extractCmd.Flags().
		StringP("bitrate", "b", "", "Bitrate for lossy formats (e.g., 128k, 320k)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	videoPath := args[0]

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")
	outputPath, _ := cmd.Flags().GetString("output")

	opts, err := extractOptions(format, sampleRate, channels, bitrate)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "." + opts.Format
	}

	logger.Infow("Extracting audio",
		"video", videoPath,
		"output", outputPath,
		"format", opts.Format,
		"sample_rate", opts.SampleRate,
		"channels", opts.Channels,
	)

	if err := newToolkit(cfg).video.ExtractAudio(cmd.Context(), videoPath, outputPath, opts); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Audio extracted successfully: %s\n", absOutput)
	return nil
}

func extractOptions(format string, sampleRate, channels int, bitrate string) (video.ExtractAudioOptions, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if !extractFormats[format] {
		return video.ExtractAudioOptions{}, fmt.Errorf(
			"invalid format %q: supported formats are wav, mp3, aac, flac",
			format,
		)
	}
	if sampleRate <= 0 {
		return video.ExtractAudioOptions{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return video.ExtractAudioOptions{}, fmt.Errorf("channels must be positive, got %d", channels)
	}
	return video.ExtractAudioOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}, nil
}
