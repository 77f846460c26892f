// Package server exposes uploads, captioning and editing over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mgpai22/captionator/internal/captioner"
	"github.com/mgpai22/captionator/internal/config"
	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/logging"
	"github.com/mgpai22/captionator/internal/storage"
	"github.com/mgpai22/captionator/internal/video"
)

const (
	maxJSONBody     = 1 << 20
	defaultJobLimit = 50
	shutdownTimeout = 10 * time.Second
)

// Captioner produces captions for stored media.
type Captioner interface {
	Caption(ctx context.Context, req captioner.Request) (*captioner.Result, error)
}

// Editor runs the video editing operations.
type Editor interface {
	ApplyEffect(ctx context.Context, inputPath, outputPath string, effect video.Effect, params video.EffectParams) error
	Compose(ctx context.Context, items []video.TimelineItem, outputPath string) error
}

// Jobs records and lists processing history.
type Jobs interface {
	Track(ctx context.Context, typ job.Type, input string, params any, fn func(context.Context) (any, error)) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)
	List(ctx context.Context, limit int) ([]*job.Job, error)
}

type Deps struct {
	Store     *storage.Store
	Captioner Captioner
	Editor    Editor
	Jobs      Jobs
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	logger *logging.Logger
}

func New(cfg *config.Config, deps Deps, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{cfg: cfg, deps: deps, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(corsOptions(s.cfg.Server.CORSOrigins)))

	r.Get("/healthz", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/output/{filename}", s.handleOutput)

	r.Group(func(r chi.Router) {
		r.Use(maxBodySize(maxJSONBody))

		r.Post("/generate_captions", s.handleGenerateCaptions)
		r.Post("/apply_effect", s.handleApplyEffect)
		r.Post("/process_video", s.handleProcessVideo)
	})

	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{id}", s.handleGetJob)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Bind, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// no write timeout: captioning a long file keeps the response open
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.logger.Infow("Server listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Infow("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// wildcard origins never allow credentials
func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCreds := true
	for _, o := range origins {
		if o == "*" {
			allowCreds = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
