package caption

import (
	"errors"
	"strings"
	"time"
)

// DefaultMaxCharsPerLine is the line budget used when none is configured.
const DefaultMaxCharsPerLine = 40

// returned when FormatCaptions receives a non-positive line budget
var ErrInvalidArgument = errors.New("invalid argument")

// single transcribed token
type Word struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// transcriber's grouping of words, e.g. one utterance
type Segment struct {
	Words []Word `json:"words"`
}

// caption line with its display window
type Cue struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration is the time the cue stays on screen.
func (c Cue) Duration() time.Duration {
	return c.End - c.Start
}

// Text joins the segment's words with single spaces.
func (s Segment) Text() string {
	parts := make([]string, 0, len(s.Words))
	for _, w := range s.Words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Start is the start of the first word, zero for an empty segment.
func (s Segment) Start() time.Duration {
	if len(s.Words) == 0 {
		return 0
	}
	return s.Words[0].Start
}

// End is the end of the last word, zero for an empty segment.
func (s Segment) End() time.Duration {
	if len(s.Words) == 0 {
		return 0
	}
	return s.Words[len(s.Words)-1].End
}

// Shift returns a copy of the segment with every timestamp moved by offset.
func (s Segment) Shift(offset time.Duration) Segment {
	words := make([]Word, len(s.Words))
	for i, w := range s.Words {
		words[i] = Word{Text: w.Text, Start: w.Start + offset, End: w.End + offset}
	}
	return Segment{Words: words}
}

// SegmentFromText spreads the words of text evenly over [start, end]. It is
// used when a transcriber only reports phrase-level timing.
func SegmentFromText(text string, start, end time.Duration) Segment {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Segment{}
	}
	if end < start {
		end = start
	}

	var totalRunes int
	for _, f := range fields {
		totalRunes += len([]rune(f))
	}

	span := end - start
	words := make([]Word, 0, len(fields))
	cursor := start
	consumed := 0
	for i, f := range fields {
		consumed += len([]rune(f))
		wordEnd := start + time.Duration(float64(span)*float64(consumed)/float64(totalRunes))
		if i == len(fields)-1 {
			wordEnd = end
		}
		words = append(words, Word{Text: f, Start: cursor, End: wordEnd})
		cursor = wordEnd
	}
	return Segment{Words: words}
}
