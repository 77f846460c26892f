package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Paths holds every directory the application reads from or writes to.
type Paths struct {
	ModelDir  string `toml:"model_dir"`  // local models and downloaded tool bundles
	TempDir   string `toml:"temp_dir"`   // scratch space for audio extraction and chunks
	OutputDir string `toml:"output_dir"` // rendered videos and subtitle files
	UploadDir string `toml:"upload_dir"` // files received by the HTTP server
	DataDir   string `toml:"data_dir"`   // job database and lock file
}

// FFmpeg locates the ffmpeg and ffprobe executables.
type FFmpeg struct {
	FFmpegPath   string `toml:"ffmpeg_path"`
	FFprobePath  string `toml:"ffprobe_path"`
	AutoDownload bool   `toml:"auto_download"`
}

// Transcription configures the speech-to-text provider.
type Transcription struct {
	Provider     string `toml:"provider"` // gemini, openai or local
	Model        string `toml:"model"`
	Language     string `toml:"language"`
	GeminiAPIKey string `toml:"gemini_api_key"`
	OpenAIAPIKey string `toml:"openai_api_key"`
	BaseURL      string `toml:"base_url"` // OpenAI-compatible endpoint for the local provider
	ChunkMinutes int    `toml:"chunk_minutes"`
	Concurrency  int    `toml:"concurrency"`
	Prompt       string `toml:"prompt"`
}

// Captions configures line packing and the subtitle file format.
type Captions struct {
	MaxCharsPerLine int    `toml:"max_chars_per_line"`
	Format          string `toml:"format"`
}

// Render configures how captions are drawn onto video.
type Render struct {
	FontName      string `toml:"font_name"`
	FontSize      int    `toml:"font_size"`
	PrimaryColour string `toml:"primary_colour"`
	OutlineColour string `toml:"outline_colour"`
	Outline       int    `toml:"outline"`
	Position      string `toml:"position"` // bottom, middle or top
	MarginV       int    `toml:"margin_v"`
}

// Server configures the HTTP API.
type Server struct {
	Bind        string   `toml:"bind"`
	CORSOrigins []string `toml:"cors_origins"`
	MaxUploadMB int      `toml:"max_upload_mb"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full application configuration. It is built once at startup
// and handed to every component that needs it.
type Config struct {
	Paths         Paths         `toml:"paths"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Transcription Transcription `toml:"transcription"`
	Captions      Captions      `toml:"captions"`
	Render        Render        `toml:"render"`
	Server        Server        `toml:"server"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/captionator/config.toml")
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides and validates the result. A missing
// file is not an error: defaults are used and exists reports false.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	resolved := path
	if resolved == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, "", false, err
		}
		resolved = p
	} else {
		p, err := expandPath(resolved)
		if err != nil {
			return nil, "", false, err
		}
		resolved = p
	}

	cfg := Default()
	exists := false

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		exists = true
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, resolved, exists, fmt.Errorf("failed to parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, resolved, false, fmt.Errorf("failed to read config %s: %w", resolved, err)
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, resolved, exists, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, exists, err
	}

	return &cfg, resolved, exists, nil
}

// Sample renders the default configuration as TOML.
func Sample() ([]byte, error) {
	cfg := Default()
	return toml.Marshal(cfg)
}

// EnsureDirectories creates every configured directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ModelDir,
		c.Paths.TempDir,
		c.Paths.OutputDir,
		c.Paths.UploadDir,
		c.Paths.DataDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	switch c.Transcription.Provider {
	case "gemini":
		return c.Transcription.GeminiAPIKey
	case "openai", "local":
		return c.Transcription.OpenAIAPIKey
	default:
		return ""
	}
}

// JobDBPath is the location of the job history database.
func (c *Config) JobDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath is the single-instance lock file used by the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "captionator.lock")
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Transcription.GeminiAPIKey == "" {
		c.Transcription.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Transcription.OpenAIAPIKey == "" {
		c.Transcription.OpenAIAPIKey = v
	}
	if v := os.Getenv("CAPTIONATOR_FFMPEG_PATH"); v != "" {
		c.FFmpeg.FFmpegPath = v
	}
	if v := os.Getenv("CAPTIONATOR_FFPROBE_PATH"); v != "" {
		c.FFmpeg.FFprobePath = v
	}
}

func (c *Config) normalize() error {
	paths := []*string{
		&c.Paths.ModelDir,
		&c.Paths.TempDir,
		&c.Paths.OutputDir,
		&c.Paths.UploadDir,
		&c.Paths.DataDir,
		&c.FFmpeg.FFmpegPath,
		&c.FFmpeg.FFprobePath,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	c.Captions.Format = strings.ToLower(strings.TrimSpace(c.Captions.Format))
	c.Render.Position = strings.ToLower(strings.TrimSpace(c.Render.Position))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
