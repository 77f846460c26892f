package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/captionator/internal/audio"
)

var (
	ErrEmptyTimeline   = errors.New("timeline is empty")
	ErrInvalidTimeline = errors.New("invalid timeline")
)

type ItemType string

const (
	ItemVideo ItemType = "video"
	ItemAudio ItemType = "audio"
	ItemImage ItemType = "image"
	ItemText  ItemType = "text"
)

// TimelineItem is one clip of a composition. Path must already point at a
// local file for media items; optional numeric fields are nil when unset.
type TimelineItem struct {
	Type ItemType
	Path string

	Start *float64
	End   *float64
	Speed *float64
	Color *float64

	Text      string
	FontSize  int
	FontColor string
	Position  string
	Duration  float64
}

// output frame geometry shared by all clips
type Canvas struct {
	Width  int
	Height int
	FPS    float64
}

var DefaultCanvas = Canvas{Width: 1280, Height: 720, FPS: 30}

const (
	defaultTextDuration  = 3.0
	defaultImageDuration = 5.0
	defaultFontSize      = 48
	sampleRate           = 44100
)

func (it TimelineItem) validate() error {
	switch it.Type {
	case ItemVideo, ItemAudio, ItemImage:
		if it.Path == "" {
			return fmt.Errorf("%s item needs a file", it.Type)
		}
		if it.Start != nil && it.End != nil && *it.End <= *it.Start {
			return fmt.Errorf("%s item end %g must be after start %g", it.Type, *it.End, *it.Start)
		}
		if it.Speed != nil && *it.Speed <= 0 {
			return fmt.Errorf("%w: speed must be positive", ErrInvalidParams)
		}
		if it.Color != nil && *it.Color < 0 {
			return fmt.Errorf("%w: color must not be negative", ErrInvalidParams)
		}
		if it.Type == ItemImage && !audio.IsImageFile(it.Path) {
			return fmt.Errorf("image item %s is not an image", filepath.Base(it.Path))
		}
	case ItemText:
		if strings.TrimSpace(it.Text) == "" {
			return errors.New("text item needs text")
		}
		if it.Duration < 0 {
			return errors.New("text item duration must not be negative")
		}
		if it.FontColor != "" && !ValidFontColor(it.FontColor) {
			return fmt.Errorf("text color %q is not a colour name or hex value", it.FontColor)
		}
	default:
		return fmt.Errorf("unknown timeline item type %q", it.Type)
	}
	return nil
}

// input options for an optional [start, end) window
func trimArgs(it TimelineItem) ffmpeg.KwArgs {
	kw := ffmpeg.KwArgs{}
	if it.Start != nil && *it.Start > 0 {
		kw["ss"] = formatFloat(*it.Start)
	}
	if it.End != nil {
		start := 0.0
		if it.Start != nil {
			start = *it.Start
		}
		kw["t"] = formatFloat(*it.End - start)
	}
	return kw
}

// fits any frame into the canvas without distortion
func canvasFilter(c Canvas) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%s,format=yuv420p",
		c.Width, c.Height, c.Width, c.Height, formatFloat(c.FPS),
	)
}

func audioNormalizeFilter() string {
	return fmt.Sprintf("aresample=%d,aformat=channel_layouts=stereo", sampleRate)
}

func joinFilters(filters ...string) string {
	var parts []string
	for _, f := range filters {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ",")
}

func blackSource(c Canvas, duration float64) string {
	src := fmt.Sprintf("color=c=black:s=%dx%d:r=%s", c.Width, c.Height, formatFloat(c.FPS))
	if duration > 0 {
		src += ":d=" + formatFloat(duration)
	}
	return src
}

func silenceSource() string {
	return fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", sampleRate)
}

func textPosition(position string) (string, string) {
	x, y := "(w-text_w)/2", "(h-text_h)/2"
	for _, part := range strings.FieldsFunc(strings.ToLower(position), func(r rune) bool {
		return r == ',' || r == ' ' || r == '-'
	}) {
		switch part {
		case "top":
			y = "h*0.05"
		case "bottom":
			y = "h-text_h-h*0.05"
		case "left":
			x = "w*0.05"
		case "right":
			x = "w-text_w-w*0.05"
		}
	}
	return x, y
}

func drawTextFilter(it TimelineItem, textFile string) string {
	size := it.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	color := it.FontColor
	if color == "" {
		color = "white"
	}
	x, y := textPosition(it.Position)
	return fmt.Sprintf("drawtext=textfile='%s':fontsize=%d:fontcolor=%s:x=%s:y=%s",
		escapeFilterPath(textFile), size, color, x, y)
}

func segmentEncodeArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"c:v":      "libx264",
		"preset":   "veryfast",
		"c:a":      "aac",
		"ar":       sampleRate,
		"ac":       2,
		"shortest": "",
	}
}

func merge(base ffmpeg.KwArgs, extra ffmpeg.KwArgs) ffmpeg.KwArgs {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// builds the ffmpeg stream that renders one item as a canvas sized clip
func (p *Processor) segmentStream(ctx context.Context, it TimelineItem, c Canvas, workDir string, index int, out string) (*ffmpeg.Stream, error) {
	switch it.Type {
	case ItemVideo:
		info, err := p.GetInfo(ctx, it.Path)
		if err != nil {
			return nil, err
		}
		if !info.HasVideo {
			return nil, fmt.Errorf("%s has no video stream", filepath.Base(it.Path))
		}

		vf, af := "", ""
		if it.Speed != nil {
			vf = speedFilter(*it.Speed)
			af = strings.Join(atempoChain(*it.Speed), ",")
		}
		if it.Color != nil {
			vf = joinFilters(vf, colorFilter(*it.Color))
		}
		kwargs := merge(segmentEncodeArgs(), ffmpeg.KwArgs{
			"vf": joinFilters(vf, canvasFilter(c)),
			"af": joinFilters(af, audioNormalizeFilter()),
		})

		in := ffmpeg.Input(it.Path, trimArgs(it))
		if info.HasAudio {
			return in.Output(out, kwargs), nil
		}
		silence := ffmpeg.Input(silenceSource(), ffmpeg.KwArgs{"f": "lavfi"})
		return ffmpeg.Output([]*ffmpeg.Stream{in.Video(), silence.Audio()}, out, kwargs), nil

	case ItemAudio:
		frame := ffmpeg.Input(blackSource(c, 0), ffmpeg.KwArgs{"f": "lavfi"})
		sound := ffmpeg.Input(it.Path, trimArgs(it))
		kwargs := merge(segmentEncodeArgs(), ffmpeg.KwArgs{
			"vf": canvasFilter(c),
			"af": audioNormalizeFilter(),
		})
		return ffmpeg.Output([]*ffmpeg.Stream{frame.Video(), sound.Audio()}, out, kwargs), nil

	case ItemImage:
		duration := it.Duration
		if duration <= 0 {
			duration = defaultImageDuration
		}
		still := ffmpeg.Input(it.Path, ffmpeg.KwArgs{"loop": 1, "t": formatFloat(duration)})
		silence := ffmpeg.Input(silenceSource(), ffmpeg.KwArgs{"f": "lavfi", "t": formatFloat(duration)})
		kwargs := merge(segmentEncodeArgs(), ffmpeg.KwArgs{
			"vf": joinFilters(optionalColor(it), canvasFilter(c)),
			"af": audioNormalizeFilter(),
		})
		return ffmpeg.Output([]*ffmpeg.Stream{still.Video(), silence.Audio()}, out, kwargs), nil

	case ItemText:
		duration := it.Duration
		if duration <= 0 {
			duration = defaultTextDuration
		}
		textFile := filepath.Join(workDir, fmt.Sprintf("text_%03d.txt", index))
		if err := os.WriteFile(textFile, []byte(it.Text), 0644); err != nil {
			return nil, fmt.Errorf("failed to write text overlay: %w", err)
		}
		frame := ffmpeg.Input(blackSource(c, duration), ffmpeg.KwArgs{"f": "lavfi"})
		silence := ffmpeg.Input(silenceSource(), ffmpeg.KwArgs{"f": "lavfi", "t": formatFloat(duration)})
		kwargs := merge(segmentEncodeArgs(), ffmpeg.KwArgs{
			"vf": joinFilters(drawTextFilter(it, textFile), "format=yuv420p"),
		})
		return ffmpeg.Output([]*ffmpeg.Stream{frame.Video(), silence.Audio()}, out, kwargs), nil
	}

	return nil, fmt.Errorf("unknown timeline item type %q", it.Type)
}

func optionalColor(it TimelineItem) string {
	if it.Color == nil {
		return ""
	}
	return colorFilter(*it.Color)
}

// canvas of the first video item, else the default
func (p *Processor) canvasFor(ctx context.Context, items []TimelineItem) Canvas {
	for _, it := range items {
		if it.Type != ItemVideo {
			continue
		}
		info, err := p.GetInfo(ctx, it.Path)
		if err != nil || info.Width <= 0 || info.Height <= 0 {
			break
		}
		c := Canvas{Width: info.Width &^ 1, Height: info.Height &^ 1, FPS: info.FrameRate}
		if c.FPS <= 0 || c.FPS > 120 {
			c.FPS = DefaultCanvas.FPS
		}
		return c
	}
	return DefaultCanvas
}

// concat demuxer list; single quotes inside paths are closed and escaped
func concatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// Compose renders every item to a clip on a shared canvas and concatenates
// them in order into outputPath.
func (p *Processor) Compose(ctx context.Context, items []TimelineItem, outputPath string) error {
	if len(items) == 0 {
		return ErrEmptyTimeline
	}
	for i, it := range items {
		if err := it.validate(); err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrInvalidTimeline, i, err)
		}
	}

	workDir, err := os.MkdirTemp(p.tempDir, "compose-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	canvas := p.canvasFor(ctx, items)

	segments := make([]string, 0, len(items))
	for i, it := range items {
		segPath := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))
		stream, err := p.segmentStream(ctx, it, canvas, workDir, i, segPath)
		if err != nil {
			return fmt.Errorf("timeline item %d: %w", i, err)
		}
		if err := p.run(ctx, stream.OverWriteOutput()); err != nil {
			return fmt.Errorf("failed to render timeline item %d: %w", i, err)
		}
		segments = append(segments, segPath)
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(segments)), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stream := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputPath, ffmpeg.KwArgs{"c": "copy", "movflags": "+faststart"}).
		OverWriteOutput()

	if err := p.run(ctx, stream); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("failed to concatenate timeline: %w", err)
	}
	return nil
}
