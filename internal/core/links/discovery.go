package links

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"formsai/internal/core/classify"
	"formsai/internal/logger"
)

// DefaultFormHosts are the hosts that serve Microsoft Forms.
var DefaultFormHosts = []string{"forms.office.com", "forms.microsoft.com", "forms.cloud.microsoft"}

// DiscoverySource crawls a seed page and collects links pointing at form hosts.
// Pages on the seed's own domain are followed up to Depth.
type DiscoverySource struct {
	SeedURL   string
	Depth     int
	LinkLimit int
	FormHosts []string
	log       *logger.Logger
}

func NewDiscoverySource(seed string, depth int, log *logger.Logger) *DiscoverySource {
	return &DiscoverySource{SeedURL: seed, Depth: depth, FormHosts: DefaultFormHosts, log: log}
}

func (s *DiscoverySource) Links(ctx context.Context) ([]FormLink, error) {
	if strings.TrimSpace(s.SeedURL) == "" {
		return nil, nil
	}
	depth := max(1, s.Depth)
	s.log.LogDebugf("Discovery start url=%s depth=%d limit=%d", s.SeedURL, depth, s.LinkLimit)

	var (
		mu      sync.Mutex
		found   []FormLink
		seen    = map[string]struct{}{}
		reached bool
	)
	c := colly.NewCollector(colly.MaxDepth(depth), colly.Async(true))
	cleaned := cleanURL(s.SeedURL)
	dom := extractDomain(cleaned)

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		stop := reached
		mu.Unlock()
		select {
		case <-ctx.Done():
			stop = true
		default:
		}
		if stop {
			r.Abort()
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		s.log.LogWarnf("Discovery error %s %d: %v", r.Request.URL, r.StatusCode, err)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := normalize(e.Request.AbsoluteURL(e.Attr("href")))
		if link == "" || !IsHTTP(link) {
			return
		}
		if s.isFormHost(extractDomain(link)) {
			mu.Lock()
			defer mu.Unlock()
			if _, dup := seen[link]; dup || reached {
				return
			}
			seen[link] = struct{}{}
			name := classify.Clean(e.Text)
			if name == "" {
				name = link
			}
			found = append(found, FormLink{Name: name, URL: link})
			if s.LinkLimit > 0 && len(found) >= s.LinkLimit {
				reached = true
			}
			return
		}
		if domainsMatch(extractDomain(link), dom) && e.Request.Depth < depth {
			_ = e.Request.Visit(link)
		}
	})

	c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 4, RandomDelay: 200 * time.Millisecond})

	if err := c.Visit(cleaned); err != nil {
		return nil, fmt.Errorf("visit %s: %w", cleaned, err)
	}
	c.Wait()
	s.log.LogSuccessf("Discovery ok url=%s forms=%d", s.SeedURL, len(found))
	return found, nil
}

func (s *DiscoverySource) isFormHost(host string) bool {
	for _, h := range s.FormHosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

func cleanURL(u string) string {
	if !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

func extractDomain(u string) string {
	p, _ := url.Parse(u)
	if p != nil {
		return p.Hostname()
	}
	return ""
}

func normalize(u string) string {
	p, _ := url.Parse(u)
	if p == nil {
		return u
	}
	p.Fragment = ""
	if p.Path == "/" {
		p.Path = ""
	}
	return p.String()
}

func domainsMatch(a, b string) bool {
	return strings.TrimPrefix(a, "www.") == strings.TrimPrefix(b, "www.")
}
