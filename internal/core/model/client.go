// Package model invokes a local inference binary and always answers with a string.
package model

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"formsai/internal/logger"
	"formsai/internal/platform/resource"
)

// Asker is anything that can answer a prompt within a timeout. Implementations
// never return errors; failures come back as fallback tokens.
type Asker interface {
	Ask(ctx context.Context, prompt string, timeout time.Duration) string
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, prompt string, timeout time.Duration) string

func (f AskerFunc) Ask(ctx context.Context, prompt string, timeout time.Duration) string {
	return f(ctx, prompt, timeout)
}

type Config struct {
	Binary          string
	Model           string
	OfflineFallback bool
	Debug           bool
	KillGrace       time.Duration
}

// Client runs `<binary> run <model>` once per prompt.
type Client struct {
	cfg      Config
	log      *logger.Logger
	lookPath func(string) (string, error)
}

const streamPoll = 100 * time.Millisecond

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Binary == "" {
		cfg.Binary = "ollama"
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = resource.DefaultGrace
	}
	if log == nil {
		log = logger.New(logger.ComponentLLM)
	}
	return &Client{cfg: cfg, log: log, lookPath: exec.LookPath}
}

func (c *Client) Model() string { return c.cfg.Model }

// Ask feeds the prompt on stdin and waits at most timeout for the process to finish.
func (c *Client) Ask(ctx context.Context, prompt string, timeout time.Duration) string {
	start := time.Now()
	cmd, token := c.command(prompt)
	if cmd == nil {
		return token
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p, err := c.launch(cmd)
	if err != nil {
		return c.fallback(ReasonError, err.Error())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.exited:
	case <-timer.C:
		p.abandon()
		c.log.LogWarnf("Model %s did not answer within %s, stopping process", c.cfg.Model, timeout)
		return c.fallback(ReasonTimeout, fmt.Sprintf("no response after %s", timeout))
	case <-ctx.Done():
		p.abandon()
		return c.fallback(ReasonError, ctx.Err().Error())
	}
	return c.finish(stdout.String(), stderr.String(), p.waitErr, time.Since(start))
}

// AskStream reads output as it is produced and checks the deadline against
// elapsed wall-clock time while the process runs.
func (c *Client) AskStream(ctx context.Context, prompt string, timeout time.Duration) string {
	start := time.Now()
	cmd, token := c.command(prompt)
	if cmd == nil {
		return token
	}
	out := &streamBuffer{notify: make(chan struct{}, 1)}
	var stderr bytes.Buffer
	cmd.Stdout = out
	cmd.Stderr = &stderr

	p, err := c.launch(cmd)
	if err != nil {
		return c.fallback(ReasonError, err.Error())
	}

	deadline := start.Add(timeout)
	ticker := time.NewTicker(streamPoll)
	defer ticker.Stop()
	for {
		select {
		case <-p.exited:
			return c.finish(out.String(), stderr.String(), p.waitErr, time.Since(start))
		case <-out.notify:
			if c.cfg.Debug {
				c.log.LogInfof("Streaming %s: %d bytes after %s", c.cfg.Model, out.Len(), time.Since(start).Round(time.Millisecond))
			}
		case <-ticker.C:
		case <-ctx.Done():
			p.abandon()
			return c.fallback(ReasonError, ctx.Err().Error())
		}
		if time.Now().After(deadline) {
			p.abandon()
			c.log.LogWarnf("Model %s still streaming after %s (%d bytes received), stopping process", c.cfg.Model, timeout, out.Len())
			return c.fallback(ReasonTimeout, fmt.Sprintf("no complete response after %s", timeout))
		}
	}
}

// Streaming returns an Asker backed by AskStream.
func (c *Client) Streaming() Asker {
	return AskerFunc(c.AskStream)
}

func (c *Client) command(prompt string) (*exec.Cmd, string) {
	bin, err := c.lookPath(c.cfg.Binary)
	if err != nil {
		c.log.LogWarnf("Inference binary %q not available: %v", c.cfg.Binary, err)
		return nil, c.fallback(ReasonNoOllama, fmt.Sprintf("%s not found", c.cfg.Binary))
	}
	cmd := exec.Command(bin, "run", c.cfg.Model)
	cmd.Stdin = strings.NewReader(prompt + "\n")
	cmd.WaitDelay = c.cfg.KillGrace
	setProcessGroup(cmd)
	return cmd, ""
}

func (c *Client) finish(stdout, stderr string, waitErr error, elapsed time.Duration) string {
	if waitErr != nil {
		detail := waitErr.Error()
		if msg := strings.TrimSpace(stderr); msg != "" {
			detail += ": " + msg
		}
		c.log.LogErrorf("Model %s failed after %s: %s", c.cfg.Model, elapsed.Round(time.Millisecond), detail)
		return c.fallback(ReasonError, detail)
	}
	answer := StripReasoning(stdout)
	if c.cfg.Debug {
		c.log.LogInfof("Model %s raw=%d chars answer=%d chars in %s", c.cfg.Model, len(stdout), len(answer), elapsed.Round(time.Millisecond))
	}
	if answer == "" {
		return c.fallback(ReasonEmptyOutput, "")
	}
	return answer
}

func (c *Client) fallback(reason Reason, detail string) string {
	return Fallback(reason, detail, c.cfg.OfflineFallback)
}

type process struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
	scope   *resource.Scope
}

func (c *Client) launch(cmd *exec.Cmd) (*process, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.cfg.Binary, err)
	}
	p := &process{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	p.scope = resource.New(c.cfg.Model, p.interrupt, p.kill,
		resource.WithGrace(c.cfg.KillGrace), resource.WithLogger(c.log))
	return p, nil
}

// abandon runs the stop ladder in the background. The caller answers at its
// deadline; the process group is interrupted, then killed after the grace period.
func (p *process) abandon() {
	go p.scope.Release()
}

func (p *process) interrupt() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	if err := interruptGroup(p.cmd.Process); err != nil {
		return err
	}
	<-p.exited
	return nil
}

func (p *process) kill() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	if err := killGroup(p.cmd.Process); err != nil {
		return err
	}
	<-p.exited
	return nil
}

type streamBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	notify chan struct{}
}

func (s *streamBuffer) Write(b []byte) (int, error) {
	s.mu.Lock()
	n, err := s.buf.Write(b)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return n, err
}

func (s *streamBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *streamBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}
