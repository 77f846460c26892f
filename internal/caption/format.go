package caption

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatCaptions packs each segment's words into cues of at most
// maxCharsPerLine runes, greedily from left to right.
//
// A line is closed when appending the next word would push the buffered text
// (including its trailing space) past the budget. The closed cue ends at the
// start of the word that did not fit; the last cue of a segment ends at the
// end of its last word. A word longer than the budget is never split and
// occupies a cue of its own.
//
// Words whose text is empty after trimming are ignored. Segments never share
// a cue, and a segment without words produces nothing.
func FormatCaptions(segments []Segment, maxCharsPerLine int) ([]Cue, error) {
	if maxCharsPerLine <= 0 {
		return nil, fmt.Errorf(
			"%w: max chars per line must be positive, got %d",
			ErrInvalidArgument,
			maxCharsPerLine,
		)
	}

	cues := make([]Cue, 0, len(segments))
	for _, seg := range segments {
		cues = packSegment(cues, seg.Words, maxCharsPerLine)
	}
	return cues, nil
}

func packSegment(cues []Cue, words []Word, maxChars int) []Cue {
	var (
		line     strings.Builder
		lineLen  int
		current  Cue
		lastWord Word
	)

	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		textLen := utf8.RuneCountInString(text)

		if lineLen == 0 {
			current.Start = w.Start
		} else if lineLen+textLen > maxChars {
			current.Text = strings.TrimSpace(line.String())
			current.End = w.Start
			cues = append(cues, current)

			line.Reset()
			lineLen = 0
			current = Cue{Start: w.Start}
		}

		line.WriteString(text)
		line.WriteByte(' ')
		lineLen += textLen + 1
		lastWord = w
	}

	if lineLen > 0 {
		current.Text = strings.TrimSpace(line.String())
		current.End = lastWord.End
		cues = append(cues, current)
	}
	return cues
}
