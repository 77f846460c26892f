package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

// Style controls how ASS subtitles look once burned in. Colours use the ASS
// &HAABBGGRR notation.
type Style struct {
	FontName      string
	FontSize      int
	PrimaryColour string
	OutlineColour string
	Outline       int
	Alignment     int // numpad layout: 2 bottom centre, 5 middle, 8 top
	MarginV       int
}

func DefaultStyle() Style {
	return Style{
		FontName:      "Arial",
		FontSize:      24,
		PrimaryColour: "&H00FFFFFF",
		OutlineColour: "&H00000000",
		Outline:       2,
		Alignment:     2,
		MarginV:       20,
	}
}

// withDefaults fills unset fields from DefaultStyle. A zero Style is the
// default style; otherwise Outline and MarginV are kept as given since zero
// is a valid value for both.
func (s Style) withDefaults() Style {
	def := DefaultStyle()
	if s == (Style{}) {
		return def
	}
	if s.FontName == "" {
		s.FontName = def.FontName
	}
	if s.FontSize <= 0 {
		s.FontSize = def.FontSize
	}
	if s.PrimaryColour == "" {
		s.PrimaryColour = def.PrimaryColour
	}
	if s.OutlineColour == "" {
		s.OutlineColour = def.OutlineColour
	}
	if s.Alignment == 0 {
		s.Alignment = def.Alignment
	}
	return s
}

// AlignmentFor maps a position name to an ASS alignment.
func AlignmentFor(position string) int {
	switch strings.ToLower(position) {
	case "top":
		return 8
	case "middle", "center", "centre":
		return 5
	default:
		return 2
	}
}

// Advanced SubStation Alpha format
type ASSWriter struct {
	Title string
	Style Style
}

// NewStyledWriter returns the writer for format. The style is ignored by
// text-only formats.
func NewStyledWriter(format Format, style Style) (Writer, error) {
	switch format {
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatVTT:
		return &VTTWriter{}, nil
	case FormatASS:
		return &ASSWriter{Title: "Captionator", Style: style}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// writes the subtitle to an SRT file
func (w *SRTWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder
	for i, entry := range sub.Entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatTimestamp(entry.StartTime, ','),
			formatTimestamp(entry.EndTime, ','),
			entry.Text)
	}
	return writeFile(path, sb.String())
}

// writes the subtitle to a VTT file
func (w *VTTWriter) Write(sub *Subtitle, path string) error {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for i, entry := range sub.Entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatTimestamp(entry.StartTime, '.'),
			formatTimestamp(entry.EndTime, '.'),
			entry.Text)
	}
	return writeFile(path, sb.String())
}

// writes the subtitle to an ASS file
func (w *ASSWriter) Write(sub *Subtitle, path string) error {
	s := w.Style.withDefaults()

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	fmt.Fprintf(&sb, "Title: %s\n", w.Title)
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,&H000000FF,%s,&H80000000,0,0,0,0,100,100,0,0,1,%d,0,%d,10,10,%d,1\n\n",
		s.FontName, s.FontSize, s.PrimaryColour, s.OutlineColour, s.Outline, s.Alignment, s.MarginV)

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, entry := range sub.Entries {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(entry.StartTime),
			formatASSTime(entry.EndTime),
			escapeASSText(entry.Text))
	}

	return writeFile(path, sb.String())
}

// hh:mm:ss<sep>mmm, negative durations clamp to zero
func formatTimestamp(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d%c%03d",
		ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, sep, ms%1000)
}

func formatASSTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d",
		cs/360_000, (cs/6000)%60, (cs/100)%60, cs%100)
}

// braces would open an override block
func escapeASSText(text string) string {
	return strings.NewReplacer("{", "(", "}", ")", "\n", `\N`).Replace(text)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}
