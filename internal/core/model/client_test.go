package model

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formsai/internal/logger"
)

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stand-ins need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ollama")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestClient(binary string, offline bool) *Client {
	log := logger.Config{Level: logger.LevelError, Out: io.Discard}.For(logger.ComponentLLM)
	return NewClient(Config{
		Binary:          binary,
		Model:           "qwen3:8b",
		OfflineFallback: offline,
		KillGrace:       200 * time.Millisecond,
	}, log)
}

func TestAskMissingBinary(t *testing.T) {
	c := newTestClient(filepath.Join(t.TempDir(), "no-such-ollama"), true)

	got := c.Ask(context.Background(), "hello", time.Second)

	reason, ok := ParseFallback(got)
	require.True(t, ok, got)
	assert.Equal(t, ReasonNoOllama, reason)
}

func TestAskMissingBinaryWithoutOfflineFallback(t *testing.T) {
	c := newTestClient(filepath.Join(t.TempDir(), "no-such-ollama"), false)

	got := c.Ask(context.Background(), "hello", time.Second)

	assert.Regexp(t, `^LLM_ERROR\[NO_OLLAMA\]: `, got)
	assert.True(t, IsFallback(got))
}

func TestAskTimeoutKillsProcess(t *testing.T) {
	c := newTestClient(fakeBinary(t, "exec sleep 10"), true)

	start := time.Now()
	got := c.Ask(context.Background(), "hello", time.Second)
	elapsed := time.Since(start)

	assert.True(t, IsTimeout(got), got)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1800*time.Millisecond)
}

func TestAskTimeoutDoesNotWaitForGrace(t *testing.T) {
	log := logger.Config{Level: logger.LevelError, Out: io.Discard}.For(logger.ComponentLLM)
	c := NewClient(Config{
		Binary:          fakeBinary(t, "trap '' INT; sleep 10"),
		Model:           "qwen3:8b",
		OfflineFallback: true,
	}, log)

	start := time.Now()
	got := c.Ask(context.Background(), "hello", time.Second)
	elapsed := time.Since(start)

	assert.True(t, IsTimeout(got), got)
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestAskTimeoutStopsSpawnedProcesses(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "late")
	c := newTestClient(fakeBinary(t, "trap '' INT; (sleep 2; touch "+marker+") & wait"), true)

	got := c.Ask(context.Background(), "hello", 500*time.Millisecond)
	require.True(t, IsTimeout(got), got)

	time.Sleep(2500 * time.Millisecond)
	_, err := os.Stat(marker)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAskPassesPromptAndModel(t *testing.T) {
	c := newTestClient(fakeBinary(t, `read line; echo "$1 $2 <$line>"`), true)

	got := c.Ask(context.Background(), "Quelle couleur ?", 5*time.Second)

	assert.Equal(t, "run qwen3:8b <Quelle couleur ?>", got)
}

func TestAskStripsReasoning(t *testing.T) {
	script := `cat >/dev/null
printf 'Thinking...\nmaybe A\n...done thinking.\n\nA\n...done thinking.\n\n  B  \n'`
	c := newTestClient(fakeBinary(t, script), true)

	assert.Equal(t, "B", c.Ask(context.Background(), "q", 5*time.Second))
}

func TestAskEmptyOutput(t *testing.T) {
	c := newTestClient(fakeBinary(t, `cat >/dev/null; echo "   "`), true)

	got := c.Ask(context.Background(), "q", 5*time.Second)

	reason, ok := ParseFallback(got)
	require.True(t, ok, got)
	assert.Equal(t, ReasonEmptyOutput, reason)
}

func TestAskProcessFailure(t *testing.T) {
	c := newTestClient(fakeBinary(t, `echo "model not pulled" >&2; exit 3`), true)

	got := c.Ask(context.Background(), "q", 5*time.Second)

	reason, ok := ParseFallback(got)
	require.True(t, ok, got)
	assert.Equal(t, ReasonError, reason)
	assert.Contains(t, got, "model not pulled")
}

func TestAskStream(t *testing.T) {
	c := newTestClient(fakeBinary(t, "cat >/dev/null; echo part1; sleep 0.2; echo part2"), true)

	assert.Equal(t, "part1\npart2", c.Streaming().Ask(context.Background(), "q", 5*time.Second))
}

func TestAskStreamTimeout(t *testing.T) {
	c := newTestClient(fakeBinary(t, "echo partial; exec sleep 10"), true)

	start := time.Now()
	got := c.AskStream(context.Background(), "q", time.Second)

	assert.True(t, IsTimeout(got), got)
	assert.Less(t, time.Since(start), 1800*time.Millisecond)
}

func TestAskStreamMissingBinary(t *testing.T) {
	c := newTestClient(filepath.Join(t.TempDir(), "absent"), true)

	reason, ok := ParseFallback(c.AskStream(context.Background(), "q", time.Second))
	require.True(t, ok)
	assert.Equal(t, ReasonNoOllama, reason)
}
