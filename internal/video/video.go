package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/captionator/internal/ffmpeg"
)

// video file information
type Info struct {
	Path      string
	Duration  time.Duration
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	HasVideo  bool
	HasAudio  bool
}

// holds options for audio extraction
type ExtractAudioOptions struct {
	Format     string // wav, mp3, aac or flac
	SampleRate int
	Channels   int
	Bitrate    string // lossy formats only, e.g. "128k"
}

// returns sensible defaults for audio extraction
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

// Processor runs editing operations through ffmpeg. Intermediate files go to
// tempDir.
type Processor struct {
	bins    *ffmpegbin.Locator
	tempDir string
}

func NewProcessor(bins *ffmpegbin.Locator, tempDir string) *Processor {
	return &Processor{bins: bins, tempDir: tempDir}
}

func (p *Processor) run(ctx context.Context, stream *ffmpeg.Stream) error {
	ffmpegPath, err := p.bins.FFmpeg()
	if err != nil {
		return err
	}
	return ffmpegbin.Run(ctx, ffmpegPath, stream)
}

// extracts audio from video file
func (p *Processor) ExtractAudio(
	ctx context.Context,
	videoPath, outputPath string,
	opts ExtractAudioOptions,
) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", videoPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs := ffmpeg.KwArgs{
		"vn": "",
		"ar": opts.SampleRate,
		"ac": opts.Channels,
	}

	switch opts.Format {
	case "mp3":
		kwargs["acodec"] = "libmp3lame"
		if opts.Bitrate != "" {
			kwargs["b:a"] = opts.Bitrate
		}
	case "aac":
		kwargs["acodec"] = "aac"
		if opts.Bitrate != "" {
			kwargs["b:a"] = opts.Bitrate
		}
	case "flac":
		kwargs["acodec"] = "flac"
	default:
		kwargs["acodec"] = "pcm_s16le"
	}

	stream := ffmpeg.Input(videoPath).
		Output(outputPath, kwargs).
		OverWriteOutput()

	if err := p.run(ctx, stream); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}
	return nil
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// retrieves video file information
func (p *Processor) GetInfo(ctx context.Context, videoPath string) (*Info, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file not found: %s", videoPath)
	}

	ffprobePath, err := p.bins.FFprobe()
	if err != nil {
		return nil, err
	}

	out, err := ffmpegbin.Exec(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbe(out)
	if err != nil {
		return nil, err
	}
	info.Path = videoPath
	return info, nil
}

func parseProbe(data []byte) (*Info, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{}
	if probe.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
		}
		info.Duration = time.Duration(seconds * float64(time.Second))
	}

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			info.FrameRate = parseRate(s.AvgFrameRate)
			if info.FrameRate == 0 {
				info.FrameRate = parseRate(s.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}

	return info, nil
}

// parses ffprobe rationals like "30000/1001"
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// BurnSubtitles renders a subtitle file (srt, vtt or ass) into the video
// frames. Audio is copied.
func (p *Processor) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", videoPath)
	}

	stream := ffmpeg.Input(videoPath).
		Output(outputPath, ffmpeg.KwArgs{
			"vf":  fmt.Sprintf("subtitles='%s'", escapeFilterPath(subtitlePath)),
			"c:a": "copy",
		}).
		OverWriteOutput()

	if err := p.run(ctx, stream); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("failed to burn subtitles: %w", err)
	}
	return nil
}

// filter arguments treat backslash, colon and quote as syntax
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, ":", `\:`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return escaped
}
