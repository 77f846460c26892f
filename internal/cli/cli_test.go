package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/captioner"
	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/logging"
	"github.com/mgpai22/captionator/internal/subtitle"
	"github.com/mgpai22/captionator/internal/video"
)

func TestDefaultCaptionOutputs(t *testing.T) {
	tests := []struct {
		name      string
		req       captioner.Request
		wantSubs  string
		wantVideo string
	}{
		{
			name:     "srt next to input",
			req:      captioner.Request{MediaPath: "/media/talk.mp4", Format: subtitle.FormatSRT},
			wantSubs: "/media/talk.srt",
		},
		{
			name:      "burn adds video output",
			req:       captioner.Request{MediaPath: "/media/talk.mp4", Format: subtitle.FormatASS, Burn: true},
			wantSubs:  "/media/talk.ass",
			wantVideo: "/media/talk_captioned.mp4",
		},
		{
			name:      "explicit paths kept",
			req:       captioner.Request{MediaPath: "/media/talk.mov", Format: subtitle.FormatVTT, OutputPath: "out.vtt", Burn: true, VideoOutputPath: "out.mov"},
			wantSubs:  "out.vtt",
			wantVideo: "out.mov",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := defaultCaptionOutputs(tt.req)
			if got.OutputPath != tt.wantSubs {
				t.Errorf("OutputPath = %q, want %q", got.OutputPath, tt.wantSubs)
			}
			if got.VideoOutputPath != tt.wantVideo {
				t.Errorf("VideoOutputPath = %q, want %q", got.VideoOutputPath, tt.wantVideo)
			}
		})
	}
}

func TestCaptionFormat(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		output   string
		fallback string
		want     subtitle.Format
		wantErr  bool
	}{
		{"flag wins", "vtt", "out.ass", "srt", subtitle.FormatVTT, false},
		{"output extension", "", "out.ass", "srt", subtitle.FormatASS, false},
		{"config default", "", "", "vtt", subtitle.FormatVTT, false},
		{"bad flag", "txt", "", "srt", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := captionFormat(tt.flag, tt.output, tt.fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("captionFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("captionFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractOptions(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		sampleRate int
		channels   int
		wantErr    bool
	}{
		{"wav", "wav", 16000, 1, false},
		{"upper case mp3", " MP3 ", 44100, 2, false},
		{"flac", "flac", 48000, 2, false},
		{"unknown format", "ogg", 16000, 1, true},
		{"zero rate", "wav", 0, 1, true},
		{"zero channels", "wav", 16000, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := extractOptions(tt.format, tt.sampleRate, tt.channels, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !extractFormats[opts.Format] {
				t.Errorf("format %q not normalized", opts.Format)
			}
		})
	}
}

func effectFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("effect", pflag.ContinueOnError)
	flags.Int("width", 0, "")
	flags.Int("height", 0, "")
	flags.Float64("factor", 1.0, "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestEffectParams(t *testing.T) {
	params, err := effectParams(effectFlags(t, "--width", "640"))
	if err != nil {
		t.Fatalf("effectParams() error = %v", err)
	}
	if params.Width == nil || *params.Width != 640 {
		t.Errorf("Width = %v, want 640", params.Width)
	}
	if params.Height != nil || params.Factor != nil {
		t.Errorf("unset flags should stay nil, got %+v", params)
	}

	params, err = effectParams(effectFlags(t, "--factor", "0"))
	if err != nil {
		t.Fatalf("effectParams() error = %v", err)
	}
	if params.Factor == nil || *params.Factor != 0 {
		t.Errorf("explicit zero factor should be kept, got %v", params.Factor)
	}
}

func TestLoadTimeline(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "intro.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"type": "video", "filename": "intro.mp4", "end": 2}, {"type": "text", "text": "Hi", "color": "red"}]`},
		{"wrapped", `{"timeline": [{"type": "video", "filename": "intro.mp4", "end": 2}, {"type": "text", "text": "Hi", "color": "red"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			items, err := loadTimeline(path)
			if err != nil {
				t.Fatalf("loadTimeline() error = %v", err)
			}
			if len(items) != 2 {
				t.Fatalf("got %d items, want 2", len(items))
			}
			if items[0].Path != filepath.Join(dir, "intro.mp4") {
				t.Errorf("video path = %q", items[0].Path)
			}
			if items[1].Type != video.ItemText || items[1].FontColor != "red" {
				t.Errorf("text item = %+v", items[1])
			}
		})
	}
}

func TestLoadTimelineErrors(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.json")
	if err := os.WriteFile(missing, []byte(`[{"type": "video", "filename": "nope.mp4"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTimeline(missing); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing clip error = %v, want not exist", err)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`[]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTimeline(empty); !errors.Is(err, video.ErrEmptyTimeline) {
		t.Errorf("empty timeline error = %v, want ErrEmptyTimeline", err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{"timeline": [`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTimeline(broken); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := writeSampleConfig(path, false); err != nil {
		t.Fatalf("writeSampleConfig() error = %v", err)
	}
	if err := writeSampleConfig(path, false); err == nil {
		t.Error("expected error when config exists without force")
	}
	if err := writeSampleConfig(path, true); err != nil {
		t.Errorf("writeSampleConfig(force) error = %v", err)
	}

	t.Setenv("HOME", t.TempDir())
	loaded, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !exists {
		t.Error("written config should exist")
	}
	if loaded.Captions.Format != "srt" {
		t.Errorf("Captions.Format = %q, want srt", loaded.Captions.Format)
	}
}

func TestRenderConfigMasksKeys(t *testing.T) {
	c := config.Default()
	c.Transcription.GeminiAPIKey = "gm-secret-key-123"
	c.Transcription.OpenAIAPIKey = "short"

	out, err := renderConfig(&c)
	if err != nil {
		t.Fatalf("renderConfig() error = %v", err)
	}
	if strings.Contains(out, "gm-secret-key-123") || strings.Contains(out, "short") {
		t.Errorf("keys leaked:\n%s", out)
	}
	if !strings.Contains(out, "gm-s********") {
		t.Errorf("masked key missing:\n%s", out)
	}
	if c.Transcription.GeminiAPIKey != "gm-secret-key-123" {
		t.Error("renderConfig must not modify its input")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer input string", 10, "a longe..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestJobTable(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	done := started.Add(1500 * time.Millisecond)
	out := jobTable([]*job.Job{
		{ID: "job-1", Type: job.TypeCaption, Status: job.StatusCompleted, Input: "talk.mp4", CreatedAt: started, StartedAt: &started, CompletedAt: &done},
		{ID: "job-2", Type: job.TypeEffect, Status: job.StatusFailed, Input: "clip.mp4", CreatedAt: started, Error: "unknown effect"},
	})
	for _, want := range []string{"job-1", "completed", "1.5s", "job-2", "failed", "unknown effect"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestCueTable(t *testing.T) {
	out := cueTable([]caption.Cue{
		{Text: "The quick", Start: 0, End: 2 * time.Second},
		{Text: "brown fox", Start: 2 * time.Second, End: 3500 * time.Millisecond},
	})
	for _, want := range []string{"The quick", "brown fox", "3.50s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("renderTable without headers should be empty")
	}
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "captionator.lock")

	lock, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock() error = %v", err)
	}
	defer lock.Unlock()

	if _, err := acquireLock(path); !errors.Is(err, errAlreadyRunning) {
		t.Errorf("second acquireLock() error = %v, want errAlreadyRunning", err)
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	in := filepath.Join(dir, "talk.srt")
	srt := "1\n00:00:01,000 --> 00:00:02,500\nHello there\n\n2\n00:00:03,000 --> 00:00:04,000\nGeneral Kenobi\n\n"
	if err := os.WriteFile(in, []byte(srt), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "talk.vtt")

	rootCmd.SetArgs([]string{"convert", in, out, "--config", filepath.Join(dir, "none.toml")})
	if err := rootCmd.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("convert error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	got := string(data)
	for _, want := range []string{"WEBVTT", "00:00:01.000 --> 00:00:02.500\nHello there", "General Kenobi"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

// fakeTracker fails before fn when preErr is set, otherwise runs fn.
type fakeTracker struct {
	preErr  error
	postErr error
}

func (f *fakeTracker) Track(ctx context.Context, typ job.Type, input string, params any, fn func(context.Context) (any, error)) (*job.Job, error) {
	if f.preErr != nil {
		return nil, f.preErr
	}
	j := &job.Job{ID: "j1", Type: typ, Status: job.StatusRunning}
	if _, err := fn(ctx); err != nil {
		j.Status = job.StatusFailed
		return j, err
	}
	if f.postErr != nil {
		return j, f.postErr
	}
	j.Status = job.StatusCompleted
	return j, nil
}

func TestTrackWith(t *testing.T) {
	prev := logger
	logger = logging.Nop()
	t.Cleanup(func() { logger = prev })

	errRecord := errors.New("database is locked")
	errWork := errors.New("ffmpeg failed")

	tests := []struct {
		name     string
		tracker  *fakeTracker
		workErr  error
		wantRuns int
		wantErr  error
	}{
		{"recorded", &fakeTracker{}, nil, 1, nil},
		{"work fails", &fakeTracker{}, errWork, 1, errWork},
		{"record fails before work", &fakeTracker{preErr: errRecord}, nil, 1, nil},
		{"record fails then work fails", &fakeTracker{preErr: errRecord}, errWork, 1, errWork},
		{"record fails after work", &fakeTracker{postErr: errRecord}, nil, 1, errRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := 0
			err := trackWith(context.Background(), tt.tracker, job.TypeCompose, "in.mp4", nil,
				func(context.Context) (any, error) {
					runs++
					return nil, tt.workErr
				})
			if runs != tt.wantRuns {
				t.Errorf("fn ran %d times, want %d", runs, tt.wantRuns)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("trackWith() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
