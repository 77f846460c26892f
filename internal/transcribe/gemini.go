package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/caption"
)

const defaultGeminiModel = "gemini-2.5-flash"

// implements Transcriber interface using Google Gemini
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

// JSON shape requested through the response schema
type geminiTranscript struct {
	Language string          `json:"language"`
	Segments []geminiSegment `json:"segments"`
}

type geminiSegment struct {
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Text  string       `json:"text"`
	Words []geminiWord `json:"words"`
}

type geminiWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

var transcriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"language": {Type: genai.TypeString},
		"segments": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start": {Type: genai.TypeNumber},
					"end":   {Type: genai.TypeNumber},
					"text":  {Type: genai.TypeString},
					"words": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"text":  {Type: genai.TypeString},
								"start": {Type: genai.TypeNumber},
								"end":   {Type: genai.TypeNumber},
							},
							Required: []string{"text", "start", "end"},
						},
					},
				},
				Required: []string{"start", "end", "text"},
			},
		},
	},
	Required: []string{"segments"},
}

func NewGeminiTranscriber(ctx context.Context, opts Options) (*GeminiTranscriber, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required: set transcription.gemini_api_key or GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes single audio file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	uploadedFile, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, requestError("gemini upload", err)
	}
	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(t.buildTranscriptionPrompt()),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   transcriptSchema,
	})
	if err != nil {
		return nil, requestError("gemini", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, requestError("gemini", fmt.Errorf("empty response"))
	}

	result, err := parseGeminiResponse(text)
	if err != nil {
		return nil, requestError("gemini", err)
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
func (t *GeminiTranscriber) TranscribeWithChunks(ctx context.Context, chunks []audio.ChunkInfo, concurrency int) (*Result, error) {
	return transcribeChunks(ctx, chunks, concurrency, t.Transcribe)
}

// creates the prompt for transcription
func (t *GeminiTranscriber) buildTranscriptionPrompt() string {
	var sb strings.Builder

	sb.WriteString("Generate a verbatim transcript of this audio. ")
	sb.WriteString("Split it into segments of one sentence or phrase each. ")
	sb.WriteString("For every segment give the start and end time in seconds, the text, ")
	sb.WriteString("and a 'words' list with each spoken word and its own start and end time in seconds. ")
	sb.WriteString("Timestamps must be non-decreasing. ")
	sb.WriteString("Report the spoken language as an ISO 639-1 code in 'language'. ")
	sb.WriteString("If there is no speech, return an empty segments list. ")

	if name := t.options.Language.Name(); name != "" {
		fmt.Fprintf(&sb, "The audio is in %s; transcribe it in that language. ", name)
	}

	if t.options.Prompt != "" {
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	return strings.TrimSpace(sb.String())
}

// parses the schema constrained JSON into word timed segments. Segments
// without usable word timing get words spread over the segment span.
func parseGeminiResponse(text string) (*Result, error) {
	text = cleanJSONResponse(text)

	var transcript geminiTranscript
	if err := json.Unmarshal([]byte(text), &transcript); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w (response: %s)", err, truncateString(text, 200))
	}

	result := &Result{Language: strings.ToLower(strings.TrimSpace(transcript.Language))}
	for _, seg := range transcript.Segments {
		words := make([]timedWord, len(seg.Words))
		for i, w := range seg.Words {
			words[i] = timedWord{text: w.Text, start: w.Start, end: w.End}
		}
		segment := buildSegment(words)
		if len(segment.Words) == 0 {
			segment = caption.SegmentFromText(seg.Text, secondsToDuration(seg.Start), secondsToDuration(seg.End))
		}
		if len(segment.Words) == 0 {
			continue
		}
		result.Segments = append(result.Segments, segment)
		if end := segment.End(); end > result.Duration {
			result.Duration = end
		}
	}
	return result, nil
}

var jsonFenceRegex = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonFenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
