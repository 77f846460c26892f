package video

import (
	"encoding/json"
	"errors"
	"testing"
)

var errMissing = errors.New("missing")

func testResolver(name string) (string, error) {
	if name == "missing.mp4" {
		return "", errMissing
	}
	return "/uploads/" + name, nil
}

func TestDecodeTimeline(t *testing.T) {
	var entries []TimelineEntry
	data := `[
		{"type": "video", "filename": "a.mp4", "start": 1, "end": 4, "color": 1.5},
		{"type": "text", "text": "Hello", "fontsize": 32, "color": "yellow", "position": "top"},
		{"type": "audio", "filename": "b.mp3", "color": null}
	]`
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	items, err := DecodeTimeline(entries, testResolver)
	if err != nil {
		t.Fatalf("DecodeTimeline() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	v := items[0]
	if v.Path != "/uploads/a.mp4" || *v.Start != 1 || *v.End != 4 {
		t.Errorf("video item = %+v", v)
	}
	if v.Color == nil || *v.Color != 1.5 {
		t.Errorf("video color = %v, want 1.5", v.Color)
	}

	txt := items[1]
	if txt.FontColor != "yellow" || txt.Color != nil || txt.FontSize != 32 || txt.Position != "top" {
		t.Errorf("text item = %+v", txt)
	}

	if items[2].Color != nil || items[2].Path != "/uploads/b.mp3" {
		t.Errorf("audio item = %+v", items[2])
	}
}

func TestDecodeTimelineErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []TimelineEntry
		want    error
	}{
		{"empty", nil, ErrEmptyTimeline},
		{"unknown type", []TimelineEntry{{Type: "gif", Filename: "a.gif"}}, ErrInvalidTimeline},
		{"no filename", []TimelineEntry{{Type: "image"}}, ErrInvalidTimeline},
		{"string color on video", []TimelineEntry{{Type: "video", Filename: "a.mp4", Color: json.RawMessage(`"red"`)}}, ErrInvalidTimeline},
		{"number color on text", []TimelineEntry{{Type: "text", Text: "hi", Color: json.RawMessage(`2`)}}, ErrInvalidTimeline},
		{"object color", []TimelineEntry{{Type: "video", Filename: "a.mp4", Color: json.RawMessage(`{}`)}}, ErrInvalidTimeline},
		{"unresolved file", []TimelineEntry{{Type: "video", Filename: "missing.mp4"}}, errMissing},
		{"color with option separator", []TimelineEntry{{Type: "text", Text: "hi", Color: json.RawMessage(`"white:textfile=/etc/passwd"`)}}, ErrInvalidTimeline},
		{"color with filter separator", []TimelineEntry{{Type: "text", Text: "hi", Color: json.RawMessage(`"white,drawbox"`)}}, ErrInvalidTimeline},
		{"color with quote", []TimelineEntry{{Type: "text", Text: "hi", Color: json.RawMessage(`"white'"`)}}, ErrInvalidTimeline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTimeline(tt.entries, testResolver)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeTimeline() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidFontColor(t *testing.T) {
	tests := []struct {
		color string
		want  bool
	}{
		{"white", true},
		{"DarkRed", true},
		{"#FF0000", true},
		{"0xFFFFFF80", true},
		{"FFFFFF", true},
		{"white@0.5", true},
		{"#000000@1", true},
		{"red@0x80", true},
		{"", false},
		{"#FFF", false},
		{"white@2", false},
		{"white:textfile=/etc/passwd", false},
		{"white,drawbox", false},
		{"white;", false},
		{"red green", false},
	}
	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			if got := ValidFontColor(tt.color); got != tt.want {
				t.Errorf("ValidFontColor(%q) = %v, want %v", tt.color, got, tt.want)
			}
		})
	}
}
