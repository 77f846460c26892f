package caption

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func sec(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func w(text string, start, end float64) Word {
	return Word{Text: text, Start: sec(start), End: sec(end)}
}

func TestFormatCaptionsExamples(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		maxChars int
		want     []Cue
	}{
		{
			name: "two words fit on one line",
			segments: []Segment{{Words: []Word{
				w("hello", 0, 0.5),
				w("world", 0.5, 1.0),
			}}},
			maxChars: 40,
			want: []Cue{
				{Text: "hello world", Start: sec(0), End: sec(1.0)},
			},
		},
		{
			name: "overlong word is kept whole",
			segments: []Segment{{Words: []Word{
				w("aaaaaaaaaaaaaaaaaaaaa", 0, 1),
				w("b", 1, 2),
			}}},
			maxChars: 10,
			want: []Cue{
				{Text: "aaaaaaaaaaaaaaaaaaaaa", Start: sec(0), End: sec(1)},
				{Text: "b", Start: sec(1), End: sec(2)},
			},
		},
		{
			name:     "no segments",
			segments: nil,
			maxChars: 40,
			want:     []Cue{},
		},
		{
			name: "separator before the word is not counted",
			segments: []Segment{{Words: []Word{
				w("ab", 0, 1),
				w("cd", 1, 2),
				w("ef", 2, 3),
			}}},
			maxChars: 5,
			want: []Cue{
				{Text: "ab cd", Start: sec(0), End: sec(2)},
				{Text: "ef", Start: sec(2), End: sec(3)},
			},
		},
		{
			name: "segments are packed independently",
			segments: []Segment{
				{Words: []Word{w("one", 0, 1)}},
				{},
				{Words: []Word{w("two", 2, 3), w("three", 3, 4)}},
			},
			maxChars: 40,
			want: []Cue{
				{Text: "one", Start: sec(0), End: sec(1)},
				{Text: "two three", Start: sec(2), End: sec(4)},
			},
		},
		{
			name: "empty words are skipped",
			segments: []Segment{{Words: []Word{
				w("", 0, 0),
				w("  ", 0, 0.2),
				w("hi", 0.2, 0.5),
				w("", 0.5, 0.9),
			}}},
			maxChars: 40,
			want: []Cue{
				{Text: "hi", Start: sec(0.2), End: sec(0.5)},
			},
		},
		{
			name: "segment of only empty words produces nothing",
			segments: []Segment{{Words: []Word{
				w("", 0, 1),
				w(" ", 1, 2),
			}}},
			maxChars: 40,
			want:     []Cue{},
		},
		{
			name: "word text is trimmed",
			segments: []Segment{{Words: []Word{
				w(" hello", 0, 0.4),
				w(" there ", 0.4, 0.8),
			}}},
			maxChars: 40,
			want: []Cue{
				{Text: "hello there", Start: sec(0), End: sec(0.8)},
			},
		},
		{
			name: "runes not bytes are counted",
			segments: []Segment{{Words: []Word{
				w("héllo", 0, 1),
				w("wörld", 1, 2),
			}}},
			maxChars: 11,
			want: []Cue{
				{Text: "héllo wörld", Start: sec(0), End: sec(2)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatCaptions(tt.segments, tt.maxChars)
			if err != nil {
				t.Fatalf("FormatCaptions error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FormatCaptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatCaptionsRejectsNonPositiveBudget(t *testing.T) {
	segments := []Segment{{Words: []Word{w("hello", 0, 1)}}}
	for _, maxChars := range []int{0, -1, -40} {
		cues, err := FormatCaptions(segments, maxChars)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("FormatCaptions(max=%d) error = %v, want ErrInvalidArgument", maxChars, err)
		}
		if cues != nil {
			t.Errorf("FormatCaptions(max=%d) returned cues %v, want nil", maxChars, cues)
		}
	}
}

// Mid-segment cues end where the overflowing word starts while the final cue
// ends with the last word. Rendering timing depends on this.
func TestFormatCaptionsEndTimeAsymmetry(t *testing.T) {
	segments := []Segment{{Words: []Word{
		w("first", 0, 0.4),
		w("second", 0.9, 1.3),
		w("third", 2.0, 2.6),
	}}}

	cues, err := FormatCaptions(segments, 6)
	if err != nil {
		t.Fatalf("FormatCaptions error: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d: %+v", len(cues), cues)
	}
	if cues[0].End != sec(0.9) {
		t.Errorf("first cue end = %v, want start of next word (900ms)", cues[0].End)
	}
	if cues[1].End != sec(2.0) {
		t.Errorf("second cue end = %v, want start of next word (2s)", cues[1].End)
	}
	if cues[2].End != sec(2.6) {
		t.Errorf("last cue end = %v, want end of last word (2.6s)", cues[2].End)
	}
}

func sampleSegments() []Segment {
	text := "the quick brown fox jumps over the lazy dog while a remarkably " +
		"unhurried tortoise contemplates the philosophical implications of racing"
	var words []Word
	for i, f := range strings.Fields(text) {
		words = append(words, w(f, float64(i)*0.5, float64(i)*0.5+0.4))
	}
	return []Segment{
		{Words: words[:9]},
		{Words: words[9:]},
	}
}

func TestFormatCaptionsPreservesWords(t *testing.T) {
	segments := sampleSegments()
	for _, maxChars := range []int{1, 5, 12, 20, 40, 200} {
		cues, err := FormatCaptions(segments, maxChars)
		if err != nil {
			t.Fatalf("FormatCaptions error: %v", err)
		}

		var gotTexts []string
		for _, c := range cues {
			gotTexts = append(gotTexts, c.Text)
		}
		var wantTexts []string
		for _, s := range segments {
			wantTexts = append(wantTexts, s.Text())
		}

		got := strings.Join(gotTexts, " ")
		want := strings.Join(wantTexts, " ")
		if got != want {
			t.Errorf("max=%d: joined cues = %q, want %q", maxChars, got, want)
		}
	}
}

func TestFormatCaptionsRespectsBudget(t *testing.T) {
	segments := sampleSegments()
	for _, maxChars := range []int{5, 12, 20, 40} {
		cues, err := FormatCaptions(segments, maxChars)
		if err != nil {
			t.Fatalf("FormatCaptions error: %v", err)
		}
		for _, c := range cues {
			n := utf8.RuneCountInString(c.Text)
			if n <= maxChars {
				continue
			}
			if strings.Contains(c.Text, " ") {
				t.Errorf("max=%d: cue %q has %d runes and more than one word", maxChars, c.Text, n)
			}
		}
	}
}

func TestFormatCaptionsMonotonic(t *testing.T) {
	segments := sampleSegments()
	cues, err := FormatCaptions(segments, 12)
	if err != nil {
		t.Fatalf("FormatCaptions error: %v", err)
	}
	for i, c := range cues {
		if c.Start > c.End {
			t.Errorf("cue %d: start %v after end %v", i, c.Start, c.End)
		}
		if c.Text == "" {
			t.Errorf("cue %d has empty text", i)
		}
		if i > 0 && cues[i-1].End > c.Start {
			t.Errorf("cue %d starts at %v before previous end %v", i, c.Start, cues[i-1].End)
		}
	}
}

func TestFormatCaptionsIsDeterministic(t *testing.T) {
	segments := sampleSegments()
	first, err := FormatCaptions(segments, 15)
	if err != nil {
		t.Fatalf("FormatCaptions error: %v", err)
	}
	second, err := FormatCaptions(segments, 15)
	if err != nil {
		t.Fatalf("FormatCaptions error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls differ:\n%+v\n%+v", first, second)
	}
}
