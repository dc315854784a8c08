package run

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formsai/internal/core/document"
	"formsai/internal/core/job"
	"formsai/internal/core/links"
	"formsai/internal/core/pipeline"
	"formsai/internal/core/publish"
	"formsai/internal/logger"
	"formsai/internal/platform/tasks"
)

type memStore struct{ data map[string][]byte }

func (m *memStore) CacheGet(_ context.Context, key string, dest interface{}) error {
	b, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(b, dest)
}

func (m *memStore) CacheSet(_ context.Context, key string, val interface{}, _ time.Duration) error {
	b, err := json.Marshal(val)
	m.data[key] = b
	return err
}

func (m *memStore) Publish(context.Context, string, string) error { return nil }

type queue struct {
	tasks []*asynq.Task
	err   error
}

func (q *queue) Enqueue(task *asynq.Task, _ string, _ int) error {
	q.tasks = append(q.tasks, task)
	return q.err
}

// stubRunner reports the links of its source as processed.
type stubRunner struct {
	src    links.Source
	final  []string
	config []links.FormLink
}

func (r *stubRunner) Run(ctx context.Context, s pipeline.State) pipeline.State {
	if r.src != nil {
		s.Links, _ = r.src.Links(ctx)
	} else {
		s.Links = r.config
	}
	if len(s.Links) > 0 {
		s.Final = r.final
	}
	return s
}

type fixture struct {
	svc   *Service
	jobs  *job.JobService
	queue *queue
	seen  []links.Source
	final []string
}

func newFixture(t *testing.T, configured []links.FormLink, sinks ...publish.Sink) *fixture {
	log := logger.Config{Level: logger.LevelError, Out: io.Discard}.For(logger.ComponentServer)
	f := &fixture{
		jobs:  job.NewJobService(&memStore{data: map[string][]byte{}}),
		queue: &queue{},
	}
	path := t.TempDir() + "/out_with_answers.json"
	require.NoError(t, document.Save(path, &document.ScrapedForm{URL: "https://f/a", Questions: []document.Question{}}))
	f.final = []string{path}
	factory := func(src links.Source) Runner {
		f.seen = append(f.seen, src)
		return &stubRunner{src: src, final: f.final, config: configured}
	}
	f.svc = NewService(factory, Options{
		Publisher: publish.NewPublisher(log, sinks...),
		Jobs:      f.jobs,
		Tasks:     f.queue,
	}, log)
	return f
}

type countingSink struct{ n int }

func (c *countingSink) Name() string { return "count" }

func (c *countingSink) Publish(context.Context, string, *document.ScrapedForm) error {
	c.n++
	return nil
}

func TestExecutePublishes(t *testing.T) {
	sink := &countingSink{}
	f := newFixture(t, []links.FormLink{{URL: "https://f/a"}}, sink)

	res, err := f.svc.Execute(context.Background(), job.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, f.final, res.Final)
	assert.Equal(t, map[string]int{"count": 1}, res.Published)
	assert.Equal(t, 1, sink.n)
	assert.Nil(t, f.seen[0])
}

func TestExecuteWithoutLinks(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Execute(context.Background(), job.RunRequest{})
	assert.ErrorIs(t, err, ErrNoLinks)
}

func TestEnqueueAndHandleTask(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := job.RunRequest{Links: []links.FormLink{{Name: "A", URL: "https://forms.office.com/r/a"}}}

	id, err := f.svc.Enqueue(ctx, req)
	require.NoError(t, err)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, tasks.TaskTypeRun, f.queue.tasks[0].Type())

	pending, err := f.jobs.GetJobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, pending.Status)

	require.NoError(t, f.svc.HandleTask(ctx, f.queue.tasks[0]))
	done, err := f.jobs.GetJobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, done.Status)
	assert.Equal(t, f.final, done.Results.Final)
	require.NotNil(t, f.seen[0])
}

func TestHandleTaskMarksFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id, err := f.svc.Enqueue(ctx, job.RunRequest{})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleTask(ctx, f.queue.tasks[0]))
	j, err := f.jobs.GetJobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, ErrNoLinks.Error(), j.Error)
}

func TestHandleTaskSkipsRetryOnBadPayload(t *testing.T) {
	f := newFixture(t, nil)
	err := f.svc.HandleTask(context.Background(), asynq.NewTask(tasks.TaskTypeRun, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEnqueueRejectsInvalidURL(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Enqueue(context.Background(), job.RunRequest{Links: []links.FormLink{{URL: "ftp://x"}}})
	assert.ErrorContains(t, err, "invalid form url")
	assert.Empty(t, f.queue.tasks)
}

func TestHTTPHandlers(t *testing.T) {
	f := newFixture(t, nil)
	h := NewHandler(f.jobs, f.svc)
	app := fiber.New()
	app.Post("/v1/runs", h.HandleCreate)
	app.Get("/v1/runs/:jobId", h.HandleGet)

	req := httptest.NewRequest("POST", "/v1/runs", strings.NewReader(`{"links":[{"form_name":"A","url":"https://forms.office.com/r/a"}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var created CreateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.JobID)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs/"+created.JobID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, job.StatusPending, status.Status)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/runs/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	bad := httptest.NewRequest("POST", "/v1/runs", strings.NewReader(`{`))
	bad.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(bad)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
