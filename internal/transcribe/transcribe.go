package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/language"
)

var (
	// ErrNoSpeech means the provider answered but found nothing to transcribe.
	ErrNoSpeech = errors.New("no intelligible speech in audio")
	// ErrRequest wraps failures talking to the provider.
	ErrRequest = errors.New("transcription request failed")
)

// transcription result
type Result struct {
	Segments []caption.Segment
	Language string
	Duration time.Duration
}

// WordCount is the number of words across all segments.
func (r *Result) WordCount() int {
	n := 0
	for _, s := range r.Segments {
		n += len(s.Words)
	}
	return n
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

type ConcurrentTranscriber interface {
	Transcriber
	TranscribeWithChunks(
		ctx context.Context,
		chunks []audio.ChunkInfo,
		concurrency int,
	) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	// any server speaking the OpenAI audio API, e.g. a local whisper.cpp
	ProviderLocal Provider = "local"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGemini, ProviderOpenAI, ProviderLocal:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", s)
	}
}

// transcription options
type Options struct {
	APIKey   string
	Language language.Tag // zero value lets the provider detect it
	Model    string
	Prompt   string
	BaseURL  string // required for ProviderLocal
}

// creates transcriber based on provider
func Factory(ctx context.Context, provider Provider, opts Options) (ConcurrentTranscriber, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(opts)
	case ProviderLocal:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("base URL is required for the local provider")
		}
		return NewOpenAITranscriber(opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// wraps a provider error so callers can match ErrRequest
func requestError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrRequest, provider, err)
}

// provider word before conversion, times in seconds
type timedWord struct {
	text       string
	start, end float64
}

// keeps words with text; a start going backwards is clamped to the previous
// word's end so packing stays monotonic
func buildSegment(words []timedWord) caption.Segment {
	var seg caption.Segment
	for _, w := range words {
		text := strings.TrimSpace(w.text)
		if text == "" {
			continue
		}
		start, end := secondsToDuration(w.start), secondsToDuration(w.end)
		if n := len(seg.Words); n > 0 && start < seg.Words[n-1].End {
			start = seg.Words[n-1].End
		}
		if end < start {
			end = start
		}
		seg.Words = append(seg.Words, caption.Word{Text: text, Start: start, End: end})
	}
	return seg
}

func secondsToDuration(s float64) time.Duration {
	if s < 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
