package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no marker", "  plain answer \n", "plain answer"},
		{"single marker", "Thinking...\nhmm\n...done thinking.\n\nYes", "Yes"},
		{"last marker wins", "a ...done thinking. b ...done thinking. c", "c"},
		{"marker only", "...done thinking.\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.in))
		})
	}
}

func TestFallbackTokens(t *testing.T) {
	assert.Equal(t, "[FALLBACK:TIMEOUT] no response after 1s", Fallback(ReasonTimeout, "no response after 1s", true))
	assert.Equal(t, "[FALLBACK:EMPTY_OUTPUT]", Fallback(ReasonEmptyOutput, "", true))
	assert.Equal(t, "LLM_ERROR[ERROR]: broken pipe", Fallback(ReasonError, "broken pipe", false))

	r, ok := ParseFallback("LLM_ERROR[TIMEOUT]: slow")
	assert.True(t, ok)
	assert.Equal(t, ReasonTimeout, r)

	assert.False(t, IsFallback("B"))
	assert.False(t, IsFallback("The answer is [FALLBACK:TIMEOUT]"))
	assert.False(t, IsTimeout(Fallback(ReasonNoOllama, "", true)))
}

type mapCache map[string]string

func (m mapCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) Set(_ context.Context, key, value string) { m[key] = value }

func TestWithCache(t *testing.T) {
	calls := 0
	reply := "A"
	next := AskerFunc(func(context.Context, string, time.Duration) string {
		calls++
		return reply
	})
	cache := mapCache{}
	asker := WithCache(next, cache, "qwen3:8b")

	assert.Equal(t, "A", asker.Ask(context.Background(), "p1", time.Second))
	assert.Equal(t, "A", asker.Ask(context.Background(), "p1", time.Second))
	assert.Equal(t, 1, calls)

	reply = Fallback(ReasonTimeout, "", true)
	asker.Ask(context.Background(), "p2", time.Second)
	asker.Ask(context.Background(), "p2", time.Second)
	assert.Equal(t, 3, calls)
	assert.Len(t, cache, 1)

	assert.NotEqual(t, CacheKey("qwen3:8b", "p"), CacheKey("llama3", "p"))
}

func TestWithNilCacheReturnsNext(t *testing.T) {
	next := AskerFunc(func(context.Context, string, time.Duration) string { return "x" })
	assert.Equal(t, "x", WithCache(next, nil, "m").Ask(context.Background(), "p", time.Second))
}
