// Package captioner runs the end-to-end caption pipeline: audio
// preparation, chunked transcription, line packing, subtitle output and
// optional burn-in.
package captioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/language"
	"github.com/mgpai22/captionator/internal/logging"
	"github.com/mgpai22/captionator/internal/storage"
	"github.com/mgpai22/captionator/internal/subtitle"
	"github.com/mgpai22/captionator/internal/transcribe"
	"github.com/mgpai22/captionator/internal/video"
)

// AudioPreparer turns media into transcription-ready chunks.
type AudioPreparer interface {
	Compress(ctx context.Context, inputPath, outputPath string, opts audio.CompressionOptions) error
	Duration(ctx context.Context, path string) (time.Duration, error)
	Chunk(ctx context.Context, audioPath string, chunkDuration time.Duration, outputDir string, concurrency int) ([]audio.ChunkInfo, error)
}

// AudioExtractor pulls the audio track out of a video.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputPath string, opts video.ExtractAudioOptions) error
}

// Renderer burns cues into a video.
type Renderer interface {
	Render(ctx context.Context, cues []caption.Cue, videoPath, outputPath string) error
}

// TranscriberFactory builds a transcriber for one request language.
type TranscriberFactory func(ctx context.Context, lang language.Tag) (transcribe.ConcurrentTranscriber, error)

// NewTranscriberFactory builds transcribers from the [transcription]
// section. An auto request language falls back to the configured one.
func NewTranscriberFactory(cfg *config.Config) TranscriberFactory {
	return func(ctx context.Context, lang language.Tag) (transcribe.ConcurrentTranscriber, error) {
		provider, err := transcribe.ParseProvider(cfg.Transcription.Provider)
		if err != nil {
			return nil, err
		}
		if lang.IsAuto() {
			lang, err = language.Parse(cfg.Transcription.Language)
			if err != nil {
				return nil, fmt.Errorf("invalid transcription.language: %w", err)
			}
		}
		return transcribe.Factory(ctx, provider, transcribe.Options{
			APIKey:   cfg.APIKey(),
			Language: lang,
			Model:    cfg.Transcription.Model,
			Prompt:   cfg.Transcription.Prompt,
			BaseURL:  cfg.Transcription.BaseURL,
		})
	}
}

// Deps are the collaborators of a Service.
type Deps struct {
	Audio          AudioPreparer
	Extractor      AudioExtractor
	NewTranscriber TranscriberFactory
	Renderer       Renderer // optional; burn requests fail without it
	Style          subtitle.Style
}

type Service struct {
	deps   Deps
	cfg    *config.Config
	logger *logging.Logger
}

func New(cfg *config.Config, deps Deps, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}
}

// Request describes one captioning run. Zero values fall back to config.
type Request struct {
	MediaPath       string
	MaxCharsPerLine int
	Language        string
	Format          subtitle.Format
	OutputPath      string // subtitle file; defaults into the output directory
	Burn            bool
	VideoOutputPath string // burned video; defaults into the output directory
}

type Result struct {
	Cues         []caption.Cue
	SubtitlePath string
	VideoPath    string // empty unless burned
	Language     string
	Duration     time.Duration
	Words        int
}

// Caption transcribes the media and writes its captions.
func (s *Service) Caption(ctx context.Context, req Request) (*Result, error) {
	req, lang, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Starting caption generation",
		"input", req.MediaPath,
		"output", req.OutputPath,
		"format", req.Format,
		"max_chars", req.MaxCharsPerLine,
		"burn", req.Burn,
	)

	if err := os.MkdirAll(s.cfg.Paths.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	workDir, err := os.MkdirTemp(s.cfg.Paths.TempDir, "caption-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	audioPath, err := s.prepareAudio(ctx, req.MediaPath, workDir)
	if err != nil {
		return nil, err
	}

	duration, err := s.deps.Audio.Duration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}
	s.logger.Infow("Audio prepared", "duration", duration.String())

	chunkDur := time.Duration(s.cfg.Transcription.ChunkMinutes) * time.Minute
	chunks, err := s.deps.Audio.Chunk(ctx, audioPath, chunkDur, filepath.Join(workDir, "chunks"), s.cfg.Transcription.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to split audio: %w", err)
	}
	s.logger.Infow("Created audio chunks", "count", len(chunks))

	transcriber, err := s.deps.NewTranscriber(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}

	transcript, err := transcriber.TranscribeWithChunks(ctx, chunks, s.cfg.Transcription.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	s.logger.Infow("Transcription complete",
		"segments", len(transcript.Segments),
		"words", transcript.WordCount(),
		"language", transcript.Language,
	)

	// chunks are no longer needed; free the space before a burn
	if err := audio.CleanupChunks(chunks); err != nil {
		s.logger.Debugw("Failed to remove audio chunks", "error", err)
	}

	sub, err := subtitle.NewCueGenerator(req.MaxCharsPerLine, req.Format).Generate(transcript.Segments)
	if err != nil {
		return nil, err
	}
	sub.Language = transcript.Language
	cues := sub.Cues()

	writer, err := subtitle.NewStyledWriter(req.Format, s.deps.Style)
	if err != nil {
		return nil, err
	}
	if err := writer.Write(sub, req.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to write subtitles: %w", err)
	}

	result := &Result{
		Cues:         cues,
		SubtitlePath: req.OutputPath,
		Language:     transcript.Language,
		Duration:     duration,
		Words:        transcript.WordCount(),
	}

	if req.Burn {
		s.logger.Infow("Burning captions into video", "output", req.VideoOutputPath)
		if err := s.deps.Renderer.Render(ctx, cues, req.MediaPath, req.VideoOutputPath); err != nil {
			return nil, err
		}
		result.VideoPath = req.VideoOutputPath
	}

	s.logger.Infow("Captions generated",
		"cues", len(cues),
		"output", result.SubtitlePath,
	)
	return result, nil
}

func (s *Service) normalize(req Request) (Request, language.Tag, error) {
	if _, err := os.Stat(req.MediaPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return req, language.Tag{}, fmt.Errorf("%w: %s", storage.ErrNotFound, req.MediaPath)
		}
		return req, language.Tag{}, fmt.Errorf("failed to stat media: %w", err)
	}
	if !audio.IsMediaFile(req.MediaPath) {
		return req, language.Tag{}, fmt.Errorf("%w: unsupported file type %s (expected audio or video)",
			caption.ErrInvalidArgument, filepath.Ext(req.MediaPath))
	}

	if req.MaxCharsPerLine == 0 {
		req.MaxCharsPerLine = s.cfg.Captions.MaxCharsPerLine
	}
	if req.MaxCharsPerLine <= 0 {
		// fail before any provider call
		return req, language.Tag{}, fmt.Errorf("%w: max chars per line must be positive, got %d",
			caption.ErrInvalidArgument, req.MaxCharsPerLine)
	}

	if req.Format == "" {
		f, err := subtitle.ParseFormat(s.cfg.Captions.Format)
		if err != nil {
			return req, language.Tag{}, err
		}
		req.Format = f
	}

	lang, err := language.Parse(req.Language)
	if err != nil {
		return req, language.Tag{}, fmt.Errorf("%w: %v", caption.ErrInvalidArgument, err)
	}

	base := strings.TrimSuffix(filepath.Base(req.MediaPath), filepath.Ext(req.MediaPath))
	if req.OutputPath == "" {
		req.OutputPath = filepath.Join(s.cfg.Paths.OutputDir, base+subtitle.GetExtensionForFormat(req.Format))
	}

	if req.Burn {
		if !audio.IsVideoFile(req.MediaPath) {
			return req, language.Tag{}, fmt.Errorf("%w: captions can only be burned into video files",
				caption.ErrInvalidArgument)
		}
		if s.deps.Renderer == nil {
			return req, language.Tag{}, fmt.Errorf("%w: burn-in is not available", caption.ErrInvalidArgument)
		}
		if req.VideoOutputPath == "" {
			req.VideoOutputPath = filepath.Join(s.cfg.Paths.OutputDir, base+"_captioned"+filepath.Ext(req.MediaPath))
		}
	}

	return req, lang, nil
}

// video input has its audio track extracted, audio input is re-encoded;
// both end up as small mono mp3
func (s *Service) prepareAudio(ctx context.Context, mediaPath, workDir string) (string, error) {
	audioPath := filepath.Join(workDir, "audio.mp3")
	opts := audio.DefaultCompressionOptions()

	if audio.IsVideoFile(mediaPath) {
		s.logger.Infow("Extracting audio from video")
		extractOpts := video.ExtractAudioOptions{
			Format:     opts.Format,
			SampleRate: opts.SampleRate,
			Channels:   opts.Channels,
			Bitrate:    opts.Bitrate,
		}
		if err := s.deps.Extractor.ExtractAudio(ctx, mediaPath, audioPath, extractOpts); err != nil {
			return "", fmt.Errorf("failed to extract audio: %w", err)
		}
		return audioPath, nil
	}

	s.logger.Infow("Compressing audio for transcription")
	if err := s.deps.Audio.Compress(ctx, mediaPath, audioPath, opts); err != nil {
		return "", fmt.Errorf("failed to compress audio: %w", err)
	}
	return audioPath, nil
}
