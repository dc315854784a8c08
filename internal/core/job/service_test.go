package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formsai/internal/core/links"
	"formsai/internal/core/pipeline"
)

type memStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	events []string
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) CacheGet(_ context.Context, key string, dest interface{}) error {
	b, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(b, dest)
}

func (m *memStore) CacheSet(_ context.Context, key string, val interface{}, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Publish(_ context.Context, channel, message string) error {
	m.events = append(m.events, channel+"="+message)
	return nil
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewJobService(store)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) }

	req := RunRequest{Links: []links.FormLink{{Name: "A", URL: "https://forms.office.com/r/a"}}}
	require.NoError(t, svc.InitPending(ctx, "j1", req))
	require.NoError(t, svc.SetProcessing(ctx, "j1"))
	require.NoError(t, svc.Complete(ctx, "j1", RunResult{
		Final:  []string{"/data/a_with_answers.json"},
		Errors: []pipeline.StageError{{Stage: pipeline.StageScrapeForms, Item: "https://x", Err: "boom"}},
	}))

	job, err := svc.GetJobStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, TypeRun, job.Type)
	assert.Equal(t, req, job.Request)
	assert.Equal(t, "2025-04-01T08:00:00Z", job.CreatedAt)
	require.NotNil(t, job.Results)
	assert.Equal(t, []string{"/data/a_with_answers.json"}, job.Results.Final)
	assert.Equal(t, 24*time.Hour, store.ttls["job:j1"])
	assert.Equal(t, []string{"job:j1=pending", "job:j1=processing", "job:j1=completed"}, store.events)
}

func TestJobFail(t *testing.T) {
	ctx := context.Background()
	svc := NewJobService(newMemStore())
	require.NoError(t, svc.InitPending(ctx, "j2", RunRequest{}))
	require.NoError(t, svc.Fail(ctx, "j2", errors.New("no links")))

	job, err := svc.GetJobStatus(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "no links", job.Error)
}

func TestGetUnknownJob(t *testing.T) {
	_, err := NewJobService(newMemStore()).GetJobStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
