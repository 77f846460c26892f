package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/caption"
)

func chunkSet(n int, size time.Duration) []audio.ChunkInfo {
	chunks := make([]audio.ChunkInfo, n)
	for i := range chunks {
		chunks[i] = audio.ChunkInfo{
			Path:      fmt.Sprintf("chunk_%03d.mp3", i),
			Index:     i,
			StartTime: time.Duration(i) * size,
			EndTime:   time.Duration(i+1) * size,
		}
	}
	return chunks
}

// one word per chunk, placed one second into the chunk
func fakeTranscribe(_ context.Context, path string) (*Result, error) {
	return &Result{
		Language: "en",
		Segments: []caption.Segment{{Words: []caption.Word{
			{Text: path, Start: time.Second, End: 2 * time.Second},
		}}},
	}, nil
}

func TestTranscribeChunksOrderAndOffsets(t *testing.T) {
	chunks := chunkSet(5, time.Minute)

	result, err := transcribeChunks(context.Background(), chunks, 3, fakeTranscribe)
	if err != nil {
		t.Fatalf("transcribeChunks error: %v", err)
	}
	if len(result.Segments) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(result.Segments))
	}
	for i, seg := range result.Segments {
		w := seg.Words[0]
		if w.Text != chunks[i].Path {
			t.Errorf("segment %d out of order: %q", i, w.Text)
		}
		wantStart := chunks[i].StartTime + time.Second
		if w.Start != wantStart {
			t.Errorf("segment %d start = %v, want %v", i, w.Start, wantStart)
		}
	}
	if result.Duration != 5*time.Minute || result.Language != "en" {
		t.Errorf("unexpected result metadata %v %q", result.Duration, result.Language)
	}
}

func TestTranscribeChunksSkipsSilence(t *testing.T) {
	chunks := chunkSet(3, time.Minute)
	fn := func(ctx context.Context, path string) (*Result, error) {
		if path == chunks[1].Path {
			return nil, ErrNoSpeech
		}
		return fakeTranscribe(ctx, path)
	}

	result, err := transcribeChunks(context.Background(), chunks, 2, fn)
	if err != nil {
		t.Fatalf("transcribeChunks error: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Errorf("expected 2 segments, got %d", len(result.Segments))
	}
}

func TestTranscribeChunksAllSilent(t *testing.T) {
	fn := func(context.Context, string) (*Result, error) { return nil, ErrNoSpeech }
	_, err := transcribeChunks(context.Background(), chunkSet(2, time.Minute), 2, fn)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}

	if _, err := transcribeChunks(context.Background(), nil, 2, fakeTranscribe); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech for no chunks, got %v", err)
	}
}

func TestTranscribeChunksFailureCancels(t *testing.T) {
	chunks := chunkSet(20, time.Minute)
	var calls atomic.Int32
	fn := func(ctx context.Context, path string) (*Result, error) {
		calls.Add(1)
		if path == chunks[0].Path {
			return nil, requestError("fake", errors.New("boom"))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		return fakeTranscribe(ctx, path)
	}

	_, err := transcribeChunks(context.Background(), chunks, 2, fn)
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	if n := calls.Load(); n >= int32(len(chunks)) {
		t.Errorf("expected remaining chunks to be skipped, got %d calls", n)
	}
}

func TestRequestError(t *testing.T) {
	err := requestError("gemini", errors.New("quota"))
	if !errors.Is(err, ErrRequest) {
		t.Errorf("expected ErrRequest in %v", err)
	}
	if errors.Is(requestError("gemini", context.Canceled), ErrRequest) {
		t.Error("cancellation must not be reported as a request failure")
	}
}

func TestParseProvider(t *testing.T) {
	for _, in := range []string{"gemini", "OpenAI", " local "} {
		if _, err := ParseProvider(in); err != nil {
			t.Errorf("ParseProvider(%q) error: %v", in, err)
		}
	}
	if _, err := ParseProvider("whisperx"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()
	if _, err := Factory(ctx, ProviderLocal, Options{}); err == nil {
		t.Error("local provider without base URL should fail")
	}
	tr, err := Factory(ctx, ProviderLocal, Options{BaseURL: "http://localhost:9000/v1"})
	if err != nil {
		t.Fatalf("Factory(local) error: %v", err)
	}
	if _, ok := tr.(*OpenAITranscriber); !ok {
		t.Errorf("expected *OpenAITranscriber, got %T", tr)
	}
	if _, err := Factory(ctx, Provider("nope"), Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuildSegment(t *testing.T) {
	seg := buildSegment([]timedWord{
		{text: " a ", start: 0, end: 1},
		{text: "", start: 1, end: 2},
		{text: "b", start: 0.5, end: 0.4}, // overlaps and ends before it starts
		{text: "c", start: -1, end: 3},
	})
	if len(seg.Words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(seg.Words))
	}
	if seg.Words[0].Text != "a" {
		t.Errorf("text not trimmed: %q", seg.Words[0].Text)
	}
	for i := 1; i < len(seg.Words); i++ {
		if seg.Words[i].Start < seg.Words[i-1].End {
			t.Errorf("word %d starts before previous ends", i)
		}
		if seg.Words[i].End < seg.Words[i].Start {
			t.Errorf("word %d ends before it starts", i)
		}
	}
}
