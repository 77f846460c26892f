package config

import (
	"errors"
	"fmt"
)

var (
	validProviders = map[string]bool{"gemini": true, "openai": true, "local": true}
	validFormats   = map[string]bool{"srt": true, "vtt": true, "ass": true}
	validPositions = map[string]bool{"bottom": true, "middle": true, "top": true}
	validLogFormat = map[string]bool{"console": true, "json": true}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.TempDir == "" {
		errs = append(errs, errors.New("paths.temp_dir must be set"))
	}
	if c.Paths.OutputDir == "" {
		errs = append(errs, errors.New("paths.output_dir must be set"))
	}
	if !validProviders[c.Transcription.Provider] {
		errs = append(errs, fmt.Errorf(
			"transcription.provider %q is not supported (use gemini, openai or local)",
			c.Transcription.Provider,
		))
	}
	if c.Transcription.Provider == "local" && c.Transcription.BaseURL == "" {
		errs = append(errs, errors.New("transcription.base_url is required for the local provider"))
	}
	if c.Transcription.ChunkMinutes <= 0 {
		errs = append(errs, fmt.Errorf(
			"transcription.chunk_minutes must be positive, got %d",
			c.Transcription.ChunkMinutes,
		))
	}
	if c.Transcription.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf(
			"transcription.concurrency must be positive, got %d",
			c.Transcription.Concurrency,
		))
	}
	if c.Captions.MaxCharsPerLine <= 0 {
		errs = append(errs, fmt.Errorf(
			"captions.max_chars_per_line must be positive, got %d",
			c.Captions.MaxCharsPerLine,
		))
	}
	if !validFormats[c.Captions.Format] {
		errs = append(errs, fmt.Errorf(
			"captions.format %q is not supported (use srt, vtt or ass)",
			c.Captions.Format,
		))
	}
	if c.Render.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("render.font_size must be positive, got %d", c.Render.FontSize))
	}
	if !validPositions[c.Render.Position] {
		errs = append(errs, fmt.Errorf(
			"render.position %q is not supported (use bottom, middle or top)",
			c.Render.Position,
		))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	if !validLogFormat[c.Logging.Format] {
		errs = append(errs, fmt.Errorf(
			"logging.format %q is not supported (use console or json)",
			c.Logging.Format,
		))
	}

	return errors.Join(errs...)
}
