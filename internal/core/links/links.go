// Package links produces the (form name, URL) pairs that seed a pipeline run.
package links

import (
	"context"
	"errors"
	"strings"
)

type FormLink struct {
	Name string `json:"form_name"`
	URL  string `json:"url"`
}

// Source yields form links. A source with nothing to offer returns an empty slice.
type Source interface {
	Links(ctx context.Context) ([]FormLink, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]FormLink, error)

func (f SourceFunc) Links(ctx context.Context) ([]FormLink, error) { return f(ctx) }

// Static is a fixed list of links.
type Static []FormLink

func (s Static) Links(context.Context) ([]FormLink, error) { return append([]FormLink(nil), s...), nil }

// Combine merges sources in order and drops repeated URLs. Failing sources
// do not hide the links of the others; their errors are joined.
func Combine(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context) ([]FormLink, error) {
		seen := map[string]struct{}{}
		var out []FormLink
		var errs []error
		for _, src := range sources {
			if src == nil {
				continue
			}
			found, err := src.Links(ctx)
			if err != nil {
				errs = append(errs, err)
			}
			for _, l := range found {
				if _, dup := seen[l.URL]; dup {
					continue
				}
				seen[l.URL] = struct{}{}
				out = append(out, l)
			}
		}
		return out, errors.Join(errs...)
	})
}

// IsHTTP reports whether u uses an http or https scheme.
func IsHTTP(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
