package subtitle

import (
	"github.com/mgpai22/captionator/internal/caption"
)

// CueGenerator packs segments into cues with caption.FormatCaptions.
type CueGenerator struct {
	MaxCharsPerLine int
	Format          Format
}

func NewCueGenerator(maxCharsPerLine int, format Format) *CueGenerator {
	if maxCharsPerLine == 0 {
		maxCharsPerLine = caption.DefaultMaxCharsPerLine
	}
	return &CueGenerator{MaxCharsPerLine: maxCharsPerLine, Format: format}
}

func (g *CueGenerator) Generate(segments []caption.Segment) (*Subtitle, error) {
	cues, err := caption.FormatCaptions(segments, g.MaxCharsPerLine)
	if err != nil {
		return nil, err
	}
	return FromCues(cues, g.Format), nil
}
