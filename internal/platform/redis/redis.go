package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"formsai/internal/logger"
)

type Options struct {
	Addr     string
	Password string
}

type Service struct {
	client *redisv8.Client
	log    *logger.Logger
}

func New(opts Options, log *logger.Logger) (*Service, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password})
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return NewFromClient(c, log), nil
}

// NewFromClient wraps an existing client without pinging it.
func NewFromClient(c *redisv8.Client, log *logger.Logger) *Service {
	return &Service{client: c, log: log}
}

func (s *Service) Close() error            { return s.client.Close() }
func (s *Service) Client() *redisv8.Client { return s.client }

// HealthCheck pings and round-trips a short-lived key.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.LogErrorf("Redis health check failed: %v", err)
		return fmt.Errorf("redis ping failed: %v", err)
	}
	key := "health:test:" + time.Now().Format("20060102150405")
	if err := s.client.Set(ctx, key, "ok", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write test failed: %v", err)
	}
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis read test failed: %v", err)
	}
	if val != "ok" {
		return fmt.Errorf("redis value mismatch: got %s, want ok", val)
	}
	_ = s.client.Del(ctx, key).Err()
	return nil
}

func (s *Service) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: s.client.Options().Addr, Password: s.client.Options().Password}
}

// ErrMiss is returned by CacheGet when the key does not exist.
var ErrMiss = errors.New("cache miss")

func (s *Service) CacheGet(ctx context.Context, key string, dest interface{}) error {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redisv8.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (s *Service) CacheSet(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, b, ttl).Err()
}

// AnswerCache stores raw model replies keyed by prompt hash.
type AnswerCache struct {
	svc *Service
	ttl time.Duration
}

func (s *Service) AnswerCache(ttl time.Duration) *AnswerCache {
	return &AnswerCache{svc: s, ttl: ttl}
}

func (c *AnswerCache) Get(ctx context.Context, key string) (string, bool) {
	var out string
	if err := c.svc.CacheGet(ctx, key, &out); err != nil {
		if !errors.Is(err, ErrMiss) {
			c.svc.log.LogWarnf("Answer cache read %s: %v", key, err)
		}
		return "", false
	}
	return out, true
}

func (c *AnswerCache) Set(ctx context.Context, key, value string) {
	if err := c.svc.CacheSet(ctx, key, value, c.ttl); err != nil {
		c.svc.log.LogWarnf("Answer cache write %s: %v", key, err)
	}
}

// Publish sends an event on a pub/sub channel.
func (s *Service) Publish(ctx context.Context, channel, message string) error {
	return s.client.Publish(ctx, channel, message).Err()
}
