package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/language"
)

const defaultWhisperModel = "whisper-1"

// implements Transcriber interface using the OpenAI audio API or any
// server that mimics it
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	name    string
	options Options
}

// verbose_json response structure from Whisper
type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
	Words    []whisperWord    `json:"words"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func NewOpenAITranscriber(opts Options) (*OpenAITranscriber, error) {
	name := "openai"
	reqOpts := []option.RequestOption{}

	switch {
	case opts.BaseURL != "":
		name = "local"
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
		// local servers usually ignore the key, the SDK still wants one
		key := opts.APIKey
		if key == "" {
			key = "local"
		}
		reqOpts = append(reqOpts, option.WithAPIKey(key))
	case opts.APIKey == "":
		return nil, fmt.Errorf("OpenAI API key is required: set transcription.openai_api_key or OPENAI_API_KEY")
	default:
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	model := opts.Model
	if model == "" {
		model = defaultWhisperModel
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		name:    name,
		options: opts,
	}, nil
}

// transcribes single audio file
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	}
	if code := t.options.Language.Code(); code != "" {
		params.Language = openai.String(code)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, requestError(t.name, err)
	}

	result, err := parseVerboseJSONResponse(resp.RawJSON())
	if err != nil {
		return nil, requestError(t.name, err)
	}
	if result.Language == "" {
		result.Language = t.options.Language.Code()
	}
	if result.WordCount() == 0 {
		return nil, ErrNoSpeech
	}
	return result, nil
}

// transcribes multiple chunks in parallel
func (t *OpenAITranscriber) TranscribeWithChunks(ctx context.Context, chunks []audio.ChunkInfo, concurrency int) (*Result, error) {
	return transcribeChunks(ctx, chunks, concurrency, t.Transcribe)
}

// parses a verbose_json body. Word timestamps are grouped under the segment
// whose span contains them; without word timestamps each segment's text is
// spread over its span.
func parseVerboseJSONResponse(rawJSON string) (*Result, error) {
	if strings.TrimSpace(rawJSON) == "" {
		return nil, fmt.Errorf("empty response")
	}

	var resp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	result := &Result{
		Language: normalizeWhisperLanguage(resp.Language),
		Duration: secondsToDuration(resp.Duration),
	}

	switch {
	case len(resp.Words) > 0 && len(resp.Segments) > 0:
		result.Segments = groupWords(resp.Words, resp.Segments)
	case len(resp.Words) > 0:
		result.Segments = []caption.Segment{whisperWordsToSegment(resp.Words)}
	case len(resp.Segments) > 0:
		for _, seg := range resp.Segments {
			s := caption.SegmentFromText(seg.Text, secondsToDuration(seg.Start), secondsToDuration(seg.End))
			if len(s.Words) > 0 {
				result.Segments = append(result.Segments, s)
			}
		}
	case strings.TrimSpace(resp.Text) != "":
		s := caption.SegmentFromText(resp.Text, 0, result.Duration)
		result.Segments = []caption.Segment{s}
	}

	return result, nil
}

func groupWords(words []whisperWord, segments []whisperSegment) []caption.Segment {
	groups := make([][]whisperWord, len(segments))
	idx := 0
	for _, w := range words {
		for idx < len(segments)-1 && w.Start >= segments[idx].End {
			idx++
		}
		groups[idx] = append(groups[idx], w)
	}

	out := make([]caption.Segment, 0, len(segments))
	for _, g := range groups {
		if s := whisperWordsToSegment(g); len(s.Words) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func whisperWordsToSegment(words []whisperWord) caption.Segment {
	converted := make([]timedWord, len(words))
	for i, w := range words {
		converted[i] = timedWord{text: w.Word, start: w.Start, end: w.End}
	}
	return buildSegment(converted)
}

// whisper reports full English names ("english"), some servers send codes
func normalizeWhisperLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(lang))
	}
	return tag.Code()
}
