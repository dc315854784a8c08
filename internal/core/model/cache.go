package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores answers by key. Misses and backend failures both report ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

type cached struct {
	next      Asker
	cache     Cache
	namespace string
}

// WithCache memoises real answers from next. Fallback tokens are never stored,
// so a timed-out question is asked again on the next run.
func WithCache(next Asker, cache Cache, namespace string) Asker {
	if cache == nil {
		return next
	}
	return &cached{next: next, cache: cache, namespace: namespace}
}

func (c *cached) Ask(ctx context.Context, prompt string, timeout time.Duration) string {
	key := CacheKey(c.namespace, prompt)
	if v, ok := c.cache.Get(ctx, key); ok {
		return v
	}
	v := c.next.Ask(ctx, prompt, timeout)
	if !IsFallback(v) {
		c.cache.Set(ctx, key, v)
	}
	return v
}

func CacheKey(namespace, prompt string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + prompt))
	return "answer:" + hex.EncodeToString(sum[:])
}
