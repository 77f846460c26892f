package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/captioner"
	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/subtitle"
	"github.com/mgpai22/captionator/internal/video"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Server.MaxUploadMB)<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.writeError(w, err, "")
			return
		}
		s.writeError(w, fmt.Errorf("%w: no file part", errBadRequest), "")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, fmt.Errorf("%w: no selected file", errBadRequest), "")
		return
	}

	name, err := s.deps.Store.Save(header.Filename, file)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	s.logger.Infow("File uploaded", "filename", name, "size", header.Size)
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Filename: name})
}

type captionRequest struct {
	Filename        string `json:"filename"`
	MaxCharsPerLine *int   `json:"max_chars_per_line,omitempty"`
	Language        string `json:"language,omitempty"`
	Format          string `json:"format,omitempty"`
	Burn            bool   `json:"burn,omitempty"`
}

type cueResponse struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type captionResponse struct {
	JobID       string        `json:"job_id"`
	Language    string        `json:"language,omitempty"`
	Captions    []cueResponse `json:"captions"`
	SubtitleURL string        `json:"subtitle_url"`
	OutputURL   string        `json:"output_url,omitempty"`
}

func (s *Server) handleGenerateCaptions(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err, "")
		return
	}

	mediaPath, err := s.deps.Store.UploadPath(req.Filename)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	creq := captioner.Request{
		MediaPath: mediaPath,
		Language:  req.Language,
		Burn:      req.Burn,
	}
	if req.MaxCharsPerLine != nil {
		if *req.MaxCharsPerLine <= 0 {
			s.writeError(w, fmt.Errorf("%w: max_chars_per_line must be positive, got %d",
				caption.ErrInvalidArgument, *req.MaxCharsPerLine), "")
			return
		}
		creq.MaxCharsPerLine = *req.MaxCharsPerLine
	}
	formatName := req.Format
	if formatName == "" {
		formatName = s.cfg.Captions.Format
	}
	format, err := subtitle.ParseFormat(formatName)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err), "")
		return
	}
	creq.Format = format

	// outputs get fresh names so concurrent requests never collide
	subName, subPath := s.deps.Store.NewOutput("captions", subtitle.GetExtensionForFormat(format))
	creq.OutputPath = subPath
	var videoName string
	if req.Burn {
		videoName, creq.VideoOutputPath = s.deps.Store.NewOutput("captioned", filepath.Ext(mediaPath))
	}

	var result *captioner.Result
	j, err := s.deps.Jobs.Track(r.Context(), job.TypeCaption, req.Filename, req, func(ctx context.Context) (any, error) {
		res, err := s.deps.Captioner.Caption(ctx, creq)
		if err != nil {
			return nil, err
		}
		result = res
		return job.CaptionResult{
			SubtitlePath: res.SubtitlePath,
			VideoPath:    res.VideoPath,
			Language:     res.Language,
			Cues:         len(res.Cues),
			Duration:     res.Duration.Seconds(),
		}, nil
	})
	if err != nil {
		s.writeError(w, err, jobID(j))
		return
	}

	resp := captionResponse{
		JobID:       j.ID,
		Language:    result.Language,
		Captions:    make([]cueResponse, len(result.Cues)),
		SubtitleURL: outputURL(subName),
	}
	for i, c := range result.Cues {
		resp.Captions[i] = cueResponse{Start: c.Start.Seconds(), End: c.End.Seconds(), Text: c.Text}
	}
	if result.VideoPath != "" {
		resp.OutputURL = outputURL(videoName)
	}
	writeJSON(w, http.StatusOK, resp)
}

type effectRequest struct {
	Filename string             `json:"filename"`
	Effect   string             `json:"effect"`
	Params   video.EffectParams `json:"params"`
}

type outputResponse struct {
	JobID     string `json:"job_id"`
	OutputURL string `json:"output_url"`
}

func (s *Server) handleApplyEffect(w http.ResponseWriter, r *http.Request) {
	var req effectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err, "")
		return
	}

	inputPath, err := s.deps.Store.UploadPath(req.Filename)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	name, outPath := s.deps.Store.NewOutput("effect", ".mp4")
	j, err := s.deps.Jobs.Track(r.Context(), job.TypeEffect, req.Filename, req, func(ctx context.Context) (any, error) {
		if err := s.deps.Editor.ApplyEffect(ctx, inputPath, outPath, video.Effect(req.Effect), req.Params); err != nil {
			return nil, err
		}
		return job.OutputResult{OutputPath: outPath}, nil
	})
	if err != nil {
		s.writeError(w, err, jobID(j))
		return
	}

	writeJSON(w, http.StatusOK, outputResponse{JobID: j.ID, OutputURL: outputURL(name)})
}

type processVideoRequest struct {
	Timeline []video.TimelineEntry `json:"timeline"`
}

func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	var req processVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err, "")
		return
	}

	items, err := video.DecodeTimeline(req.Timeline, s.deps.Store.UploadPath)
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	name, outPath := s.deps.Store.NewOutput("", ".mp4")
	input := fmt.Sprintf("timeline of %d items", len(items))
	j, err := s.deps.Jobs.Track(r.Context(), job.TypeCompose, input, req, func(ctx context.Context) (any, error) {
		if err := s.deps.Editor.Compose(ctx, items, outPath); err != nil {
			return nil, err
		}
		return job.OutputResult{OutputPath: outPath}, nil
	})
	if err != nil {
		s.writeError(w, err, jobID(j))
		return
	}

	writeJSON(w, http.StatusOK, outputResponse{JobID: j.ID, OutputURL: outputURL(name)})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Store.OutputPath(chi.URLParam(r, "filename"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, v), "")
			return
		}
		limit = n
	}

	jobs, err := s.deps.Jobs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.deps.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func jobID(j *job.Job) string {
	if j == nil {
		return ""
	}
	return j.ID
}
