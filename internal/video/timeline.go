package video

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// a colour name or (#|0x)RRGGBB[AA], optionally with @alpha; anything else
// could carry extra drawtext options
var fontColorPattern = regexp.MustCompile(
	`^([A-Za-z]+|(#|0x)?[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?)(@(0(\.[0-9]+)?|1(\.0+)?|0x[0-9A-Fa-f]{2}))?$`,
)

// ValidFontColor reports whether color is safe to use as a drawtext colour.
func ValidFontColor(color string) bool {
	return fontColorPattern.MatchString(color)
}

// TimelineEntry is the JSON form of one clip. "color" is overloaded: a
// number is a colour gain for media clips, a string is the font colour of
// text.
type TimelineEntry struct {
	Type     string          `json:"type"`
	Filename string          `json:"filename,omitempty"`
	Start    *float64        `json:"start,omitempty"`
	End      *float64        `json:"end,omitempty"`
	Speed    *float64        `json:"speed,omitempty"`
	Color    json.RawMessage `json:"color,omitempty"`
	Text     string          `json:"text,omitempty"`
	FontSize int             `json:"fontsize,omitempty"`
	Position string          `json:"position,omitempty"`
	Duration float64         `json:"duration,omitempty"`
}

// Resolver maps a timeline filename to a local path.
type Resolver func(name string) (string, error)

// DecodeTimeline maps JSON entries to timeline items, resolving the files
// of media entries.
func DecodeTimeline(entries []TimelineEntry, resolve Resolver) ([]TimelineItem, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTimeline
	}

	out := make([]TimelineItem, 0, len(entries))
	for i, e := range entries {
		it := TimelineItem{
			Type:     ItemType(e.Type),
			Start:    e.Start,
			End:      e.End,
			Speed:    e.Speed,
			Text:     e.Text,
			FontSize: e.FontSize,
			Position: e.Position,
			Duration: e.Duration,
		}

		if err := applyColor(&it, e.Color); err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidTimeline, i, err)
		}

		switch it.Type {
		case ItemVideo, ItemAudio, ItemImage:
			if e.Filename == "" {
				return nil, fmt.Errorf("%w: item %d: %s item needs a filename", ErrInvalidTimeline, i, e.Type)
			}
			path, err := resolve(e.Filename)
			if err != nil {
				return nil, fmt.Errorf("timeline item %d: %w", i, err)
			}
			it.Path = path
		case ItemText:
		default:
			return nil, fmt.Errorf("%w: item %d: unknown type %q", ErrInvalidTimeline, i, e.Type)
		}

		out = append(out, it)
	}
	return out, nil
}

func applyColor(it *TimelineItem, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var factor float64
	if err := json.Unmarshal(raw, &factor); err == nil {
		if it.Type == ItemText {
			return fmt.Errorf("text color must be a colour name, got %s", raw)
		}
		it.Color = &factor
		return nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if it.Type != ItemText {
			return fmt.Errorf("%s color must be a number, got %s", it.Type, raw)
		}
		if !ValidFontColor(name) {
			return fmt.Errorf("text color %q is not a colour name or hex value", name)
		}
		it.FontColor = name
		return nil
	}

	return fmt.Errorf("color must be a number or a string, got %s", raw)
}
