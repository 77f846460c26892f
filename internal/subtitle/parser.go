package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// shared by SRT and VTT; hours are optional in VTT
var cueTimingRegex = regexp.MustCompile(
	`^\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})`,
)

var assTagRegex = regexp.MustCompile(`\{[^}]*\}`)

// Open parses an SRT, VTT or ASS file chosen by extension.
func Open(path string) (*Subtitle, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("unsupported subtitle format: %s", filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Parse(file, format)
}

// Parse reads a subtitle track in the given format.
func Parse(r io.Reader, format Format) (*Subtitle, error) {
	var (
		entries []Entry
		err     error
	)
	switch format {
	case FormatSRT, FormatVTT:
		entries, err = parseCueBlocks(r)
	case FormatASS:
		entries, err = parseASS(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", format, err)
	}
	return &Subtitle{Entries: entries, Format: format}, nil
}

// parses blank-line separated cue blocks. A block is an optional identifier,
// a timing line and one or more text lines. VTT header, NOTE and STYLE
// blocks carry no timing line and are dropped.
func parseCueBlocks(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries []Entry
		current *Entry
		text    []string
		lineNum int
	)

	flush := func() {
		if current != nil && len(text) > 0 {
			current.Index = len(entries) + 1
			current.Text = strings.Join(text, "\n")
			entries = append(entries, *current)
		}
		current = nil
		text = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if m := cueTimingRegex.FindStringSubmatch(line); m != nil {
			flush()
			start, err := timestampFromParts(m[1], m[2], m[3], m[4])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := timestampFromParts(m[5], m[6], m[7], m[8])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Entry{StartTime: start, EndTime: end}
			continue
		}

		if current != nil {
			text = append(text, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func timestampFromParts(hours, minutes, seconds, millis string) (time.Duration, error) {
	var h int
	if hours != "" {
		v, err := strconv.Atoi(hours)
		if err != nil {
			return 0, err
		}
		h = v
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.Atoi(millis)
	if err != nil {
		return 0, err
	}
	if m > 59 || s > 59 {
		return 0, fmt.Errorf("out of range %02d:%02d", m, s)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// reads Dialogue events using the [Events] Format line to locate columns.
// Override tags are stripped and \N becomes a newline.
func parseASS(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries  []Entry
		inEvents bool
		columns  = []string{"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}
	)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if strings.HasPrefix(line, "[") {
			inEvents = strings.EqualFold(line, "[Events]")
			continue
		}
		if !inEvents {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Format":
			columns = columns[:0]
			for _, c := range strings.Split(value, ",") {
				columns = append(columns, strings.ToLower(strings.TrimSpace(c)))
			}
		case "Dialogue":
			// the last column (Text) may itself contain commas
			fields := strings.SplitN(strings.TrimSpace(value), ",", len(columns))
			if len(fields) != len(columns) {
				continue
			}
			row := make(map[string]string, len(columns))
			for i, c := range columns {
				row[c] = fields[i]
			}
			start, err := parseASSTimestamp(row["start"])
			if err != nil {
				return nil, err
			}
			end, err := parseASSTimestamp(row["end"])
			if err != nil {
				return nil, err
			}
			text := assTagRegex.ReplaceAllString(row["text"], "")
			text = strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(text)
			entries = append(entries, Entry{
				Index:     len(entries) + 1,
				StartTime: start,
				EndTime:   end,
				Text:      strings.TrimSpace(text),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// h:mm:ss.cc
func parseASSTimestamp(ts string) (time.Duration, error) {
	ts = strings.TrimSpace(ts)
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid ASS timestamp %q", ts)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid ASS timestamp %q", ts)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid ASS timestamp %q", ts)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ASS timestamp %q", ts)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*1000+0.5)*time.Millisecond, nil
}

// Convert rewrites a subtitle file in another format. The target format is
// taken from outputPath's extension.
func Convert(inputPath, outputPath string, style Style) (*Subtitle, error) {
	sub, err := Open(inputPath)
	if err != nil {
		return nil, err
	}

	format, err := ParseFormat(filepath.Ext(outputPath))
	if err != nil {
		return nil, err
	}

	writer, err := NewStyledWriter(format, style)
	if err != nil {
		return nil, err
	}
	if err := writer.Write(sub, outputPath); err != nil {
		return nil, fmt.Errorf("failed to write subtitles: %w", err)
	}
	sub.Format = format
	return sub, nil
}
