package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrUnknownEffect = errors.New("unknown effect")

// ErrInvalidParams is returned when effect parameters are out of range.
var ErrInvalidParams = errors.New("invalid effect parameters")

type Effect string

const (
	EffectResize Effect = "resize"
	EffectSpeed  Effect = "speed"
	EffectColor  Effect = "color"
)

// EffectParams carries the union of parameters the effects accept. Unset
// fields are nil.
type EffectParams struct {
	Width  *int     `json:"width,omitempty"`
	Height *int     `json:"height,omitempty"`
	Factor *float64 `json:"factor,omitempty"`
}

func (p EffectParams) factor() float64 {
	if p.Factor == nil {
		return 1.0
	}
	return *p.Factor
}

// filters for one effect; audio is empty when the track passes through
type effectFilters struct {
	video string
	audio string
}

func buildEffect(effect Effect, params EffectParams) (effectFilters, error) {
	switch effect {
	case EffectResize:
		vf, err := resizeFilter(params.Width, params.Height)
		if err != nil {
			return effectFilters{}, err
		}
		return effectFilters{video: vf}, nil
	case EffectSpeed:
		f := params.factor()
		if f <= 0 {
			return effectFilters{}, fmt.Errorf("%w: speed factor must be positive, got %g", ErrInvalidParams, f)
		}
		return effectFilters{video: speedFilter(f), audio: strings.Join(atempoChain(f), ",")}, nil
	case EffectColor:
		f := params.factor()
		if f < 0 {
			return effectFilters{}, fmt.Errorf("%w: color factor must not be negative, got %g", ErrInvalidParams, f)
		}
		return effectFilters{video: colorFilter(f)}, nil
	default:
		return effectFilters{}, fmt.Errorf("%w: %q", ErrUnknownEffect, effect)
	}
}

// a missing side keeps the aspect ratio; -2 keeps it even for yuv420p
func resizeFilter(width, height *int) (string, error) {
	if width == nil && height == nil {
		return "", fmt.Errorf("%w: resize needs width or height", ErrInvalidParams)
	}
	w, h := -2, -2
	if width != nil {
		if *width <= 0 {
			return "", fmt.Errorf("%w: width must be positive", ErrInvalidParams)
		}
		w = *width
	}
	if height != nil {
		if *height <= 0 {
			return "", fmt.Errorf("%w: height must be positive", ErrInvalidParams)
		}
		h = *height
	}
	return fmt.Sprintf("scale=%d:%d", w, h), nil
}

func speedFilter(factor float64) string {
	return "setpts=PTS/" + formatFloat(factor)
}

// atempo accepts 0.5..2.0 per instance, so larger changes are chained
func atempoChain(factor float64) []string {
	var chain []string
	for factor > 2.0 {
		chain = append(chain, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		chain = append(chain, "atempo=0.5")
		factor /= 0.5
	}
	return append(chain, "atempo="+formatFloat(factor))
}

// multiplies each RGB channel, clipping at full scale
func colorFilter(factor float64) string {
	f := formatFloat(factor)
	return fmt.Sprintf("colorchannelmixer=rr=%s:gg=%s:bb=%s", f, f, f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ApplyEffect re-encodes inputPath with a single effect into outputPath.
func (p *Processor) ApplyEffect(
	ctx context.Context,
	inputPath, outputPath string,
	effect Effect,
	params EffectParams,
) error {
	filters, err := buildEffect(effect, params)
	if err != nil {
		return err
	}

	info, err := p.GetInfo(ctx, inputPath)
	if err != nil {
		return err
	}
	if !info.HasVideo {
		return fmt.Errorf("%w: %s has no video stream", ErrInvalidParams, inputPath)
	}

	kwargs := ffmpeg.KwArgs{
		"vf":      filters.video,
		"c:v":     "libx264",
		"pix_fmt": "yuv420p",
	}
	if info.HasAudio {
		if filters.audio != "" {
			kwargs["af"] = filters.audio
			kwargs["c:a"] = "aac"
		} else {
			kwargs["c:a"] = "copy"
		}
	}

	stream := ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput()

	if err := p.run(ctx, stream); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("failed to apply %s: %w", effect, err)
	}
	return nil
}
