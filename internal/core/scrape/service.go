package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"formsai/internal/core/document"
	"formsai/internal/core/links"
	"formsai/internal/logger"
	"formsai/internal/platform/resource"
)

// Scraper produces the document of one form.
type Scraper interface {
	Scrape(ctx context.Context, link links.FormLink) (*document.ScrapedForm, error)
}

type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	ImagesDir         string
	ReleaseGrace      time.Duration
}

// Service drives one fresh browser session per form.
type Service struct {
	opts   Options
	log    *logger.Logger
	parser *PageParser
}

func NewService(opts Options, log *logger.Logger) *Service {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 20 * time.Second
	}
	profile := RandomProfile()
	return &Service{
		opts:   opts,
		log:    log,
		parser: NewPageParser(NewHTTPImageFetcher(opts.ImagesDir, profile), log),
	}
}

func (s *Service) Scrape(ctx context.Context, link links.FormLink) (*document.ScrapedForm, error) {
	start := time.Now()
	s.log.Info().Str("url", link.URL).Str("form", link.Name).Msg("scrape form")

	sess, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.scope.Release(); err != nil {
			s.log.LogWarnf("Browser release for %s: %v", link.URL, err)
		}
	}()

	html, err := s.render(ctx, sess.page, link.URL)
	if err != nil {
		return nil, err
	}
	// The page content is captured; the session is not needed for image downloads.
	if err := sess.scope.Release(); err != nil {
		s.log.LogWarnf("Browser release for %s: %v", link.URL, err)
	}

	form, err := s.parser.Parse(ctx, link, html)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", link.URL, err)
	}
	s.log.Info().
		Str("url", link.URL).
		Int("questions", form.Statistics.TotalQuestions).
		Int("images", form.Statistics.TotalImagesDownloaded).
		Int("errors", len(form.Statistics.Errors)).
		Dur("took", time.Since(start)).
		Msg("scrape done")
	return form, nil
}

type session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	scope   *resource.Scope
}

func (s *Service) open() (*session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.opts.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch: %w", err)
	}
	sess := &session{pw: pw, browser: browser}
	sess.scope = resource.New("browser", sess.close, pw.Stop,
		resource.WithGrace(s.opts.ReleaseGrace), resource.WithLogger(s.log))

	profile := RandomProfile()
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(profile.UserAgent),
		ExtraHttpHeaders: profile.Headers(),
	})
	if err != nil {
		sess.scope.Release()
		return nil, fmt.Errorf("browser context: %w", err)
	}
	sess.bctx = bctx
	page, err := bctx.NewPage()
	if err != nil {
		sess.scope.Release()
		return nil, fmt.Errorf("new page: %w", err)
	}
	sess.page = page
	return sess, nil
}

func (sess *session) close() error {
	var errs []error
	if sess.bctx != nil {
		errs = append(errs, sess.bctx.Close())
	}
	errs = append(errs, sess.browser.Close(), sess.pw.Stop())
	return errors.Join(errs...)
}

// render navigates, waits for the question list and scrolls every question
// into view so lazy images get their src, then returns the page HTML.
func (s *Service) render(ctx context.Context, page playwright.Page, url string) (string, error) {
	timeout := float64(s.opts.NavigationTimeout.Milliseconds())
	if _, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded, Timeout: playwright.Float(10000)}); err != nil {
		s.log.LogDebugf("domcontentloaded navigation failed for %s, retrying with load: %v", url, err)
		if _, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad, Timeout: playwright.Float(timeout)}); err != nil {
			return "", fmt.Errorf("goto %s: %w", url, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := page.Locator(QuestionListSelector).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(timeout),
	}); err != nil {
		return "", fmt.Errorf("%s: %w: %v", url, ErrNoQuestionList, err)
	}

	items := page.Locator(QuestionListSelector + " " + QuestionItemSelector)
	n, err := items.Count()
	if err != nil {
		return "", fmt.Errorf("count questions: %w", err)
	}
	s.log.LogDebugf("Found %d question(s) on %s", n, url)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := items.Nth(i).ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: playwright.Float(2000)}); err != nil {
			s.log.LogDebugf("Scroll to question %d failed: %v", i+1, err)
		}
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}
