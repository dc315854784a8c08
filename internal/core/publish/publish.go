package publish

import (
	"context"
	"fmt"
	"path/filepath"

	"formsai/internal/core/document"
	"formsai/internal/logger"
)

// Sink receives every final annotated document.
type Sink interface {
	Name() string
	Publish(ctx context.Context, path string, form *document.ScrapedForm) error
}

// Report counts what each sink accepted.
type Report struct {
	Published map[string]int `json:"published"`
	Errors    []string       `json:"errors,omitempty"`
}

// Publisher fans final documents out to the configured sinks. A failing
// sink is logged and does not stop the others.
type Publisher struct {
	sinks []Sink
	log   *logger.Logger
}

func NewPublisher(log *logger.Logger, sinks ...Sink) *Publisher {
	p := &Publisher{log: log}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	return p
}

func (p *Publisher) Enabled() bool { return len(p.sinks) > 0 }

func (p *Publisher) Publish(ctx context.Context, paths []string) Report {
	r := Report{Published: map[string]int{}}
	if !p.Enabled() {
		return r
	}
	for _, path := range paths {
		form, err := document.Load(path)
		if err != nil {
			p.log.LogWarnf("Skip publishing %s: %v", path, err)
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		for _, s := range p.sinks {
			if err := s.Publish(ctx, path, form); err != nil {
				p.log.LogWarnf("%s rejected %s: %v", s.Name(), path, err)
				r.Errors = append(r.Errors, fmt.Sprintf("%s: %s: %v", s.Name(), filepath.Base(path), err))
				continue
			}
			r.Published[s.Name()]++
		}
	}
	for name, n := range r.Published {
		p.log.LogSuccessf("Published %d document(s) to %s", n, name)
	}
	return r
}
