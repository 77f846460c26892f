package transcribe

import (
	"testing"
	"time"
)

func TestParseVerboseJSONResponse(t *testing.T) {
	tests := []struct {
		name         string
		rawJSON      string
		wantSegments int
		wantWords    int
		wantLanguage string
		wantErr      bool
	}{
		{
			name: "words grouped into segments",
			rawJSON: `{
				"text": "Hello world. How are you?",
				"language": "english",
				"duration": 3.0,
				"segments": [
					{"start": 0.0, "end": 1.5, "text": "Hello world."},
					{"start": 1.5, "end": 3.0, "text": "How are you?"}
				],
				"words": [
					{"word": "Hello", "start": 0.0, "end": 0.6},
					{"word": "world.", "start": 0.7, "end": 1.4},
					{"word": "How", "start": 1.5, "end": 1.8},
					{"word": "are", "start": 1.9, "end": 2.2},
					{"word": "you?", "start": 2.3, "end": 2.9}
				]
			}`,
			wantSegments: 2,
			wantWords:    5,
			wantLanguage: "en",
		},
		{
			name: "words without segments",
			rawJSON: `{
				"language": "es",
				"words": [
					{"word": "hola", "start": 0.0, "end": 0.5},
					{"word": " ", "start": 0.5, "end": 0.6},
					{"word": "mundo", "start": 0.6, "end": 1.0}
				]
			}`,
			wantSegments: 1,
			wantWords:    2,
			wantLanguage: "es",
		},
		{
			name: "segments without words",
			rawJSON: `{
				"segments": [
					{"start": 0.0, "end": 2.0, "text": "three little words"},
					{"start": 2.0, "end": 2.5, "text": "  "}
				]
			}`,
			wantSegments: 1,
			wantWords:    3,
		},
		{
			name:         "text only",
			rawJSON:      `{"text": "Transcription text only.", "segments": null, "duration": 1.0}`,
			wantSegments: 1,
			wantWords:    3,
		},
		{
			name:         "nothing transcribed",
			rawJSON:      `{"text": "", "segments": [], "duration": 4.0}`,
			wantSegments: 0,
		},
		{
			name:    "empty body",
			rawJSON: "",
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			rawJSON: `{"text": "broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVerboseJSONResponse(tt.rawJSON)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(result.Segments) != tt.wantSegments {
				t.Errorf("segments = %d, want %d", len(result.Segments), tt.wantSegments)
			}
			if result.WordCount() != tt.wantWords {
				t.Errorf("words = %d, want %d", result.WordCount(), tt.wantWords)
			}
			if result.Language != tt.wantLanguage {
				t.Errorf("language = %q, want %q", result.Language, tt.wantLanguage)
			}
		})
	}
}

func TestGroupWordsTiming(t *testing.T) {
	words := []whisperWord{
		{Word: "one", Start: 0.0, End: 0.4},
		{Word: "two", Start: 0.5, End: 0.9},
		{Word: "three", Start: 5.0, End: 5.4},
		{Word: "four", Start: 9.0, End: 9.5}, // past the last segment end
	}
	segments := []whisperSegment{
		{Start: 0, End: 1},
		{Start: 1, End: 2}, // no words
		{Start: 4, End: 6},
	}

	got := groupWords(words, segments)
	if len(got) != 2 {
		t.Fatalf("expected 2 non-empty segments, got %d", len(got))
	}
	if got[0].Text() != "one two" {
		t.Errorf("segment 0 = %q", got[0].Text())
	}
	if got[1].Text() != "three four" {
		t.Errorf("segment 1 = %q", got[1].Text())
	}
	if got[1].Words[0].Start != 5*time.Second || got[1].End() != 9500*time.Millisecond {
		t.Errorf("segment 1 timing = %v..%v", got[1].Words[0].Start, got[1].End())
	}
}

func TestNewOpenAITranscriber(t *testing.T) {
	if _, err := NewOpenAITranscriber(Options{}); err == nil {
		t.Error("expected error without API key")
	}

	tr, err := NewOpenAITranscriber(Options{BaseURL: "http://127.0.0.1:8080/v1"})
	if err != nil {
		t.Fatalf("local transcriber error: %v", err)
	}
	if tr.name != "local" || tr.model != defaultWhisperModel {
		t.Errorf("unexpected transcriber %s/%s", tr.name, tr.model)
	}

	tr, err = NewOpenAITranscriber(Options{APIKey: "sk-test", Model: "gpt-4o-transcribe"})
	if err != nil {
		t.Fatalf("openai transcriber error: %v", err)
	}
	if tr.name != "openai" || tr.model != "gpt-4o-transcribe" {
		t.Errorf("unexpected transcriber %s/%s", tr.name, tr.model)
	}
}

func TestNormalizeWhisperLanguage(t *testing.T) {
	tests := map[string]string{
		"english": "en",
		"en":      "en",
		"":        "",
		"Spanish": "es",
	}
	for in, want := range tests {
		if got := normalizeWhisperLanguage(in); got != want {
			t.Errorf("normalizeWhisperLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
