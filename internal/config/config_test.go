package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/mgpai22/captionator/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "captionator", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.TempDir != filepath.Join(home, ".cache", "captionator", "tmp") {
		t.Fatalf("unexpected temp dir: %q", cfg.Paths.TempDir)
	}
	if cfg.Captions.MaxCharsPerLine != 40 {
		t.Fatalf("expected default max chars 40, got %d", cfg.Captions.MaxCharsPerLine)
	}
	if cfg.Transcription.GeminiAPIKey != "gem-key" {
		t.Fatalf("expected Gemini key from env, got %q", cfg.Transcription.GeminiAPIKey)
	}
	if cfg.APIKey() != "gem-key" {
		t.Fatalf("APIKey() = %q, want gem-key", cfg.APIKey())
	}
	if cfg.JobDBPath() != filepath.Join(cfg.Paths.DataDir, "jobs.db") {
		t.Fatalf("unexpected job db path: %q", cfg.JobDBPath())
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
output_dir = "` + filepath.ToSlash(filepath.Join(dir, "out")) + `"

[transcription]
provider = "OpenAI"
openai_api_key = "file-key"
concurrency = 5

[captions]
max_chars_per_line = 32
format = "VTT"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Transcription.Provider != "openai" {
		t.Fatalf("provider = %q, want openai", cfg.Transcription.Provider)
	}
	if cfg.APIKey() != "file-key" {
		t.Fatalf("APIKey() = %q, want file-key", cfg.APIKey())
	}
	if cfg.Transcription.Concurrency != 5 {
		t.Fatalf("concurrency = %d, want 5", cfg.Transcription.Concurrency)
	}
	if cfg.Captions.MaxCharsPerLine != 32 || cfg.Captions.Format != "vtt" {
		t.Fatalf("captions = %+v", cfg.Captions)
	}
	if cfg.Paths.OutputDir != filepath.Join(dir, "out") {
		t.Fatalf("output dir = %q", cfg.Paths.OutputDir)
	}
	if cfg.Transcription.ChunkMinutes != 1 {
		t.Fatalf("unset chunk_minutes should keep default, got %d", cfg.Transcription.ChunkMinutes)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[captions]\nmax_chars = 10\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[captions]\nmax_chars_per_line = 0\n\n[transcription]\nprovider = \"vosk\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "max_chars_per_line") || !strings.Contains(msg, "vosk") {
		t.Fatalf("expected both problems reported, got: %v", err)
	}
}

func TestEnvOverridesFFmpegPaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CAPTIONATOR_FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("CAPTIONATOR_FFPROBE_PATH", "/opt/ffmpeg/bin/ffprobe")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpeg.FFmpegPath != filepath.Clean("/opt/ffmpeg/bin/ffmpeg") {
		t.Fatalf("ffmpeg path = %q", cfg.FFmpeg.FFmpegPath)
	}
	if cfg.FFmpeg.FFprobePath != filepath.Clean("/opt/ffmpeg/bin/ffprobe") {
		t.Fatalf("ffprobe path = %q", cfg.FFmpeg.FFprobePath)
	}
}

func TestLocalProviderRequiresBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Provider = "local"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without base_url")
	}
	cfg.Transcription.BaseURL = "http://127.0.0.1:8000/v1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSampleRoundTrips(t *testing.T) {
	data, err := config.Sample()
	if err != nil {
		t.Fatalf("Sample error: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample does not parse: %v", err)
	}
	if cfg.Captions.MaxCharsPerLine != config.Default().Captions.MaxCharsPerLine {
		t.Fatalf("sample max chars = %d", cfg.Captions.MaxCharsPerLine)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample does not validate: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		ModelDir:  filepath.Join(base, "models"),
		TempDir:   filepath.Join(base, "tmp"),
		OutputDir: filepath.Join(base, "out"),
		UploadDir: filepath.Join(base, "uploads"),
		DataDir:   filepath.Join(base, "data"),
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories error: %v", err)
	}
	for _, dir := range []string{"models", "tmp", "out", "uploads", "data"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}
