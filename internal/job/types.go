package job

import (
	"encoding/json"
	"time"
)

// Type is the kind of processing a job records.
type Type string

const (
	TypeCaption Type = "caption"
	TypeEffect  Type = "effect"
	TypeCompose Type = "compose"
)

// Status is the state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one processing request and its outcome.
type Job struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	Input       string          `json:"input"`
	Params      json.RawMessage `json:"params,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Elapsed is the run time of a finished job, or zero.
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// CaptionResult is stored for completed caption jobs.
type CaptionResult struct {
	SubtitlePath string  `json:"subtitle_path"`
	VideoPath    string  `json:"video_path,omitempty"`
	Language     string  `json:"language,omitempty"`
	Cues         int     `json:"cues"`
	Duration     float64 `json:"duration"` // media length in seconds
}

// OutputResult is stored for jobs that produce a single file.
type OutputResult struct {
	OutputPath string `json:"output_path"`
}
