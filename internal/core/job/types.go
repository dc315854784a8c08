package job

import (
	"formsai/internal/core/links"
	"formsai/internal/core/pipeline"
)

// Job is the stored record of one pipeline run requested over HTTP.
type Job struct {
	JobID     string     `json:"job_id"`
	Type      Type       `json:"type"`
	Status    Status     `json:"status"`
	Request   RunRequest `json:"request"`
	Results   *RunResult `json:"results,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

type Type string

const TypeRun Type = "pipeline_run"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RunRequest optionally pins the forms to process. When Links is empty the
// configured link sources are used.
type RunRequest struct {
	Links []links.FormLink `json:"links,omitempty"`
}

type RunResult struct {
	Final         []string              `json:"final_json_files"`
	Errors        []pipeline.StageError `json:"errors,omitempty"`
	Published     map[string]int        `json:"published,omitempty"`
	PublishErrors []string              `json:"publish_errors,omitempty"`
}
