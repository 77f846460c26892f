package cli

import (
	"context"

	"github.com/mgpai22/captionator/internal/audio"
	"github.com/mgpai22/captionator/internal/captioner"
	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/ffmpeg"
	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/logging"
	"github.com/mgpai22/captionator/internal/render"
	"github.com/mgpai22/captionator/internal/video"
)

// media tooling shared by the commands
type toolkit struct {
	video *video.Processor
	audio *audio.Processor
}

func newToolkit(cfg *config.Config) *toolkit {
	loc := ffmpeg.NewLocator(ffmpeg.Options{
		FFmpegPath:   cfg.FFmpeg.FFmpegPath,
		FFprobePath:  cfg.FFmpeg.FFprobePath,
		CacheDir:     cfg.Paths.ModelDir,
		AutoDownload: cfg.FFmpeg.AutoDownload,
	})
	return &toolkit{
		video: video.NewProcessor(loc, cfg.Paths.TempDir),
		audio: audio.NewProcessor(loc),
	}
}

func (tk *toolkit) captioner(cfg *config.Config, logger *logging.Logger) *captioner.Service {
	renderer := render.New(tk.video, cfg.Render, cfg.Paths.TempDir)
	return captioner.New(cfg, captioner.Deps{
		Audio:          tk.audio,
		Extractor:      tk.video,
		NewTranscriber: captioner.NewTranscriberFactory(cfg),
		Renderer:       renderer,
		Style:          renderer.Style(),
	}, logger)
}

// track runs fn as a recorded job. History is best effort on the command
// line: when the database cannot be opened, or the job cannot be recorded
// before fn starts, fn still runs.
func track(ctx context.Context, cfg *config.Config, typ job.Type, input string, params any, fn func(context.Context) (any, error)) error {
	store, err := job.Open(cfg.JobDBPath())
	if err != nil {
		logger.Warnw("Job history unavailable", "error", err)
		_, err := fn(ctx)
		return err
	}
	defer store.Close()

	return trackWith(ctx, store, typ, input, params, fn)
}

type jobTracker interface {
	Track(ctx context.Context, typ job.Type, input string, params any, fn func(context.Context) (any, error)) (*job.Job, error)
}

func trackWith(ctx context.Context, jobs jobTracker, typ job.Type, input string, params any, fn func(context.Context) (any, error)) error {
	started := false
	j, err := jobs.Track(ctx, typ, input, params, func(ctx context.Context) (any, error) {
		started = true
		return fn(ctx)
	})
	if j != nil {
		logger.Debugw("Job recorded", "id", j.ID, "status", j.Status)
	}
	if err != nil && !started {
		logger.Warnw("Failed to record job", "type", typ, "error", err)
		_, err := fn(ctx)
		return err
	}
	return err
}
