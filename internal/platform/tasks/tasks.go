package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"formsai/internal/platform/redis"
)

const (
	TaskTypeRun = "pipeline:run"
	QueueRuns   = "runs"
)

// RunPayload identifies the job a pipeline:run task belongs to.
type RunPayload struct {
	JobID string `json:"job_id"`
}

func NewRunTask(jobID string) (*asynq.Task, error) {
	b, err := json.Marshal(RunPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRun, b), nil
}

func ParseRunPayload(t *asynq.Task) (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	if p.JobID == "" {
		return p, fmt.Errorf("%s payload without job_id", t.Type())
	}
	return p, nil
}

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

func (t *Client) Enqueue(task *asynq.Task, queue string, maxRetries int) error {
	_, err := t.c.Enqueue(task, asynq.Queue(queue), asynq.MaxRetry(maxRetries))
	return err
}

func (t *Client) Close() error { return t.c.Close() }
