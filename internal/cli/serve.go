package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/server"
	"github.com/mgpai22/captionator/internal/storage"
)

var errAlreadyRunning = errors.New("another captionator server is already running")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve uploads, caption generation, effects and timeline composition over
HTTP. Only one server may run per data directory.

Endpoints:
  POST /upload              multipart "file" field
  POST /generate_captions   {"filename", "max_chars_per_line", "language", "format", "burn"}
  POST /apply_effect        {"filename", "effect", "params"}
  POST /process_video       {"timeline": [...]}
  GET  /output/{filename}
  GET  /jobs, /jobs/{id}
  GET  /healthz

Examples:
  captionator serve
  captionator serve --bind 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", "", "Listen address; defaults to server.bind")
}

func runServe(cmd *cobra.Command, args []string) error {
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		cfg.Server.Bind = bind
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock, err := acquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warnw("Failed to release lock", "path", lock.Path(), "error", err)
		}
	}()

	store, err := storage.New(cfg.Paths.UploadDir, cfg.Paths.OutputDir)
	if err != nil {
		return err
	}

	jobs, err := job.Open(cfg.JobDBPath())
	if err != nil {
		return err
	}
	defer jobs.Close()

	tk := newToolkit(cfg)
	srv := server.New(cfg, server.Deps{
		Store:     store,
		Captioner: tk.captioner(cfg, logger.Named("captioner")),
		Editor:    tk.video,
		Jobs:      jobs,
	}, logger.Named("server"))

	logger.Infow("Starting server",
		"bind", cfg.Server.Bind,
		"uploads", cfg.Paths.UploadDir,
		"outputs", store.OutputDir(),
		"jobs_db", jobs.Path(),
	)
	return srv.Run(cmd.Context())
}

func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", errAlreadyRunning, path)
	}
	return lock, nil
}
