// Package render draws caption cues onto video frames.
//
// Cues are written to a styled ASS track in a scratch directory and burned
// in with ffmpeg's subtitles filter. The ASS style comes from the [render]
// config section, so font, colours and position survive the trip through
// libass regardless of the subtitle format the user asked to keep.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/subtitle"
)

// Burner renders a subtitle file into a video.
type Burner interface {
	BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error
}

type Renderer struct {
	burner  Burner
	style   subtitle.Style
	tempDir string
}

func New(burner Burner, cfg config.Render, tempDir string) *Renderer {
	return &Renderer{
		burner:  burner,
		style:   StyleFromConfig(cfg),
		tempDir: tempDir,
	}
}

// StyleFromConfig fills unset fields from the default style.
func StyleFromConfig(cfg config.Render) subtitle.Style {
	style := subtitle.DefaultStyle()
	if cfg.FontName != "" {
		style.FontName = cfg.FontName
	}
	if cfg.FontSize > 0 {
		style.FontSize = cfg.FontSize
	}
	if cfg.PrimaryColour != "" {
		style.PrimaryColour = cfg.PrimaryColour
	}
	if cfg.OutlineColour != "" {
		style.OutlineColour = cfg.OutlineColour
	}
	if cfg.Outline >= 0 {
		style.Outline = cfg.Outline
	}
	if cfg.MarginV > 0 {
		style.MarginV = cfg.MarginV
	}
	style.Alignment = subtitle.AlignmentFor(cfg.Position)
	return style
}

// Style is the ASS style burned captions use.
func (r *Renderer) Style() subtitle.Style {
	return r.style
}

// Render burns cues into videoPath and writes the result to outputPath.
func (r *Renderer) Render(ctx context.Context, cues []caption.Cue, videoPath, outputPath string) error {
	if len(cues) == 0 {
		return fmt.Errorf("no captions to render")
	}

	workDir, err := os.MkdirTemp(r.tempDir, "render-*")
	if err != nil {
		return fmt.Errorf("failed to create render directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	assPath := filepath.Join(workDir, "captions.ass")
	if err := r.WriteTrack(cues, assPath); err != nil {
		return err
	}

	if err := r.burner.BurnSubtitles(ctx, videoPath, assPath, outputPath); err != nil {
		return fmt.Errorf("failed to render captions: %w", err)
	}
	return nil
}

// WriteTrack writes cues as a styled ASS file.
func (r *Renderer) WriteTrack(cues []caption.Cue, path string) error {
	writer, err := subtitle.NewStyledWriter(subtitle.FormatASS, r.style)
	if err != nil {
		return err
	}
	if err := writer.Write(subtitle.FromCues(cues, subtitle.FormatASS), path); err != nil {
		return fmt.Errorf("failed to write caption track: %w", err)
	}
	return nil
}
