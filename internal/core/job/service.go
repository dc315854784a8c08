package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("job not found")

// Store is the key/value backend jobs live in. *redis.Service satisfies it.
type Store interface {
	CacheGet(ctx context.Context, key string, dest interface{}) error
	CacheSet(ctx context.Context, key string, val interface{}, ttl time.Duration) error
	Publish(ctx context.Context, channel, message string) error
}

type JobService struct {
	store Store
	now   func() time.Time
}

func NewJobService(store Store) *JobService { return &JobService{store: store, now: time.Now} }

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.store.CacheGet(ctx, key(jobID), &job); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return &job, nil
}

func (s *JobService) InitPending(ctx context.Context, jobID string, req RunRequest) error {
	at := s.now().UTC().Format(time.RFC3339)
	return s.save(ctx, &Job{JobID: jobID, Type: TypeRun, Status: StatusPending, Request: req, CreatedAt: at})
}

func (s *JobService) SetProcessing(ctx context.Context, jobID string) error {
	return s.update(ctx, jobID, func(j *Job) { j.Status = StatusProcessing })
}

func (s *JobService) Complete(ctx context.Context, jobID string, result RunResult) error {
	return s.update(ctx, jobID, func(j *Job) {
		j.Status = StatusCompleted
		j.Results = &result
	})
}

func (s *JobService) Fail(ctx context.Context, jobID string, cause error) error {
	return s.update(ctx, jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Error = cause.Error()
	})
}

func (s *JobService) update(ctx context.Context, jobID string, apply func(*Job)) error {
	job, err := s.GetJobStatus(ctx, jobID)
	if err != nil {
		job = &Job{JobID: jobID, Type: TypeRun}
	}
	apply(job)
	return s.save(ctx, job)
}

func (s *JobService) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.store.CacheSet(ctx, key(job.JobID), job, ttl(job.Status)); err != nil {
		return err
	}
	// Listeners only need to know the record changed.
	_ = s.store.Publish(ctx, key(job.JobID), string(job.Status))
	return nil
}

func key(id string) string { return "job:" + id }

func ttl(s Status) time.Duration {
	if s == StatusCompleted || s == StatusFailed {
		return 24 * time.Hour
	}
	return time.Hour
}
