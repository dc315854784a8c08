package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"formsai/internal/core/job"
	"formsai/internal/core/links"
	"formsai/internal/core/pipeline"
	"formsai/internal/core/publish"
	"formsai/internal/logger"
	"formsai/internal/platform/tasks"
)

var ErrNoLinks = errors.New("no form links to process")

// Runner executes the stages. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, initial pipeline.State) pipeline.State
}

// Factory builds a Runner reading links from src, or from the configured
// sources when src is nil.
type Factory func(src links.Source) Runner

type Enqueuer interface {
	Enqueue(task *asynq.Task, queue string, maxRetries int) error
}

// Service runs the pipeline, publishes its output and tracks queued runs.
type Service struct {
	pipelines  Factory
	publisher  *publish.Publisher
	jobs       *job.JobService
	tasks      Enqueuer
	maxRetries int
	log        *logger.Logger
}

type Options struct {
	Publisher  *publish.Publisher
	Jobs       *job.JobService
	Tasks      Enqueuer
	MaxRetries int
}

func NewService(pipelines Factory, opts Options, log *logger.Logger) *Service {
	if opts.Publisher == nil {
		opts.Publisher = publish.NewPublisher(log)
	}
	return &Service{
		pipelines:  pipelines,
		publisher:  opts.Publisher,
		jobs:       opts.Jobs,
		tasks:      opts.Tasks,
		maxRetries: opts.MaxRetries,
		log:        log,
	}
}

// Execute runs the pipeline once and publishes the final documents.
func (s *Service) Execute(ctx context.Context, req job.RunRequest) (job.RunResult, error) {
	var src links.Source
	if len(req.Links) > 0 {
		src = links.Static(req.Links)
	}
	state := s.pipelines(src).Run(ctx, pipeline.State{})
	result := job.RunResult{Final: state.Final, Errors: state.Errors}
	if len(state.Links) == 0 {
		return result, ErrNoLinks
	}
	if s.publisher.Enabled() {
		report := s.publisher.Publish(ctx, state.Final)
		result.Published = report.Published
		result.PublishErrors = report.Errors
	}
	return result, nil
}

// Enqueue records a pending job and queues it for the worker.
func (s *Service) Enqueue(ctx context.Context, req job.RunRequest) (string, error) {
	if s.jobs == nil || s.tasks == nil {
		return "", errors.New("run queue not configured")
	}
	for _, l := range req.Links {
		if !links.IsHTTP(l.URL) {
			return "", fmt.Errorf("invalid form url %q", l.URL)
		}
	}
	id := uuid.NewString()
	if err := s.jobs.InitPending(ctx, id, req); err != nil {
		return "", err
	}
	task, err := tasks.NewRunTask(id)
	if err != nil {
		return "", err
	}
	if err := s.tasks.Enqueue(task, tasks.QueueRuns, s.maxRetries); err != nil {
		_ = s.jobs.Fail(ctx, id, err)
		return "", err
	}
	s.log.LogInfof("Queued run %s (%d pinned link(s))", id, len(req.Links))
	return id, nil
}

// HandleTask is the asynq handler for pipeline:run.
func (s *Service) HandleTask(ctx context.Context, task *asynq.Task) error {
	p, err := tasks.ParseRunPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	j, err := s.jobs.GetJobStatus(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	s.log.LogInfof("Processing run %s", p.JobID)
	if err := s.jobs.SetProcessing(ctx, p.JobID); err != nil {
		return err
	}

	result, err := s.Execute(ctx, j.Request)
	if err != nil {
		s.log.LogError(fmt.Sprintf("Run %s failed", p.JobID), err)
		return s.jobs.Fail(ctx, p.JobID, err)
	}
	s.log.LogSuccessf("Run %s completed with %d document(s)", p.JobID, len(result.Final))
	return s.jobs.Complete(ctx, p.JobID, result)
}
