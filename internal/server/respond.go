package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mgpai22/captionator/internal/caption"
	"github.com/mgpai22/captionator/internal/job"
	"github.com/mgpai22/captionator/internal/storage"
	"github.com/mgpai22/captionator/internal/transcribe"
	"github.com/mgpai22/captionator/internal/video"
)

// errBadRequest marks malformed request bodies
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	JobID string `json:"job_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error, jobID string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Errorw("Request error", "error", err, "job_id", jobID)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg, JobID: jobID})
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, caption.ErrInvalidArgument),
		errors.Is(err, storage.ErrNotAllowed),
		errors.Is(err, storage.ErrBadName),
		errors.Is(err, video.ErrUnknownEffect),
		errors.Is(err, video.ErrInvalidParams),
		errors.Is(err, video.ErrEmptyTimeline),
		errors.Is(err, video.ErrInvalidTimeline):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, transcribe.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcribe.ErrRequest):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func outputURL(name string) string {
	return "/output/" + name
}
