package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/captionator/internal/caption"
)

// represents single subtitle entry
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// represents complete subtitle track
type Subtitle struct {
	Entries  []Entry
	Language string
	Format   Format
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// ParseFormat accepts a format name with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	case "ass", "ssa":
		return FormatASS, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use srt, vtt, or ass", s)
	}
}

// interface for writing subtitles to files
type Writer interface {
	Write(subtitle *Subtitle, path string) error
}

// FromCues numbers cues into a subtitle track in the given order.
func FromCues(cues []caption.Cue, format Format) *Subtitle {
	entries := make([]Entry, len(cues))
	for i, c := range cues {
		entries[i] = Entry{
			Index:     i + 1,
			StartTime: c.Start,
			EndTime:   c.End,
			Text:      c.Text,
		}
	}
	return &Subtitle{Entries: entries, Format: format}
}

// Cues converts entries back to caption cues.
func (s *Subtitle) Cues() []caption.Cue {
	cues := make([]caption.Cue, len(s.Entries))
	for i, e := range s.Entries {
		cues[i] = caption.Cue{Text: e.Text, Start: e.StartTime, End: e.EndTime}
	}
	return cues
}

// subtitle format based on file extension
func GetFormatFromExtension(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return FormatSRT
	}
	return f
}

// file extension for a format
func GetExtensionForFormat(format Format) string {
	switch format {
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}
