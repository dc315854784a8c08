package main

import (
	"context"
	"fmt"
	"os/exec"

	"formsai/internal/config"
	"formsai/internal/core/document"
	"formsai/internal/core/language"
	"formsai/internal/core/links"
	"formsai/internal/core/model"
	"formsai/internal/core/ocr"
	"formsai/internal/core/pipeline"
	"formsai/internal/core/publish"
	"formsai/internal/core/run"
	"formsai/internal/core/scrape"
	"formsai/internal/health"
	"formsai/internal/logger"
	"formsai/internal/platform/eino"
	rds "formsai/internal/platform/redis"
)

// app holds the collaborators shared by the run and serve commands.
type app struct {
	cfg  config.Config
	logs logger.Config

	redis     *rds.Service
	asker     model.Asker
	sources   links.Source
	scraper   scrape.Scraper
	ocr       pipeline.OCR
	publisher *publish.Publisher
	checks    map[string]health.Check
}

func newApp(ctx context.Context, cfg config.Config, logs logger.Config) (*app, error) {
	a := &app{cfg: cfg, logs: logs, checks: map[string]health.Check{}}

	if cfg.RedisAddr != "" {
		svc, err := rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, logs.For("REDIS"))
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = svc
		a.checks["redis"] = svc.HealthCheck
	}

	asker, err := a.buildAsker(ctx)
	if err != nil {
		return nil, err
	}
	a.asker = asker

	var sources links.Source = links.NewSpreadsheetSource(cfg.InputDir, logs.For(logger.ComponentLinks))
	if cfg.DiscoveryURL != "" {
		sources = links.Combine(sources, links.NewDiscoverySource(cfg.DiscoveryURL, cfg.DiscoveryDepth, logs.For(logger.ComponentLinks)))
	}
	a.sources = sources

	a.scraper = scrape.NewService(scrape.Options{
		Headless:          cfg.Headless,
		NavigationTimeout: cfg.NavigationTimeout,
		ImagesDir:         cfg.ImagesDir,
		ReleaseGrace:      cfg.KillGrace,
	}, logs.For(logger.ComponentScrape))

	if cfg.OCREnabled {
		tesseract := ocr.NewTesseract(cfg.OCRBinary, cfg.OCRLanguages)
		a.ocr = ocr.NewEnricher(tesseract, cfg.ImagesDir, logs.For(logger.ComponentOCR))
		a.checks["ocr"] = func(context.Context) error {
			if !tesseract.Available() {
				return ocr.ErrUnavailable
			}
			return nil
		}
	}

	publisher, err := a.buildPublisher()
	if err != nil {
		return nil, err
	}
	a.publisher = publisher
	return a, nil
}

func (a *app) buildAsker(ctx context.Context) (model.Asker, error) {
	cfg := a.cfg
	var asker model.Asker
	switch cfg.ModelProvider {
	case "gemini":
		svc, err := eino.NewService(ctx, eino.Config{
			Provider:        cfg.ModelProvider,
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.ModelName,
			OfflineFallback: cfg.OfflineFallback,
			Debug:           cfg.Debug,
		}, a.logs.For(logger.ComponentLLM))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Eino service: %w", err)
		}
		asker = svc
	default:
		client := model.NewClient(model.Config{
			Binary:          cfg.OllamaBinary,
			Model:           cfg.ModelName,
			OfflineFallback: cfg.OfflineFallback,
			Debug:           cfg.Debug,
			KillGrace:       cfg.KillGrace,
		}, a.logs.For(logger.ComponentLLM))
		asker = client
		if cfg.ModelStreaming {
			asker = client.Streaming()
		}
		a.checks["ollama"] = func(context.Context) error {
			_, err := exec.LookPath(cfg.OllamaBinary)
			return err
		}
	}
	if a.redis != nil {
		asker = model.WithCache(asker, a.redis.AnswerCache(cfg.AnswerCacheTTL), cfg.ModelProvider+":"+cfg.ModelName)
	}
	return asker, nil
}

func (a *app) buildPublisher() (*publish.Publisher, error) {
	var sinks []publish.Sink
	if a.cfg.OpenSearchURL != "" {
		client, err := publish.NewOpenSearchClient(a.cfg.OpenSearchURL)
		if err != nil {
			return nil, fmt.Errorf("opensearch: %w", err)
		}
		sinks = append(sinks, publish.NewIndexer(client, a.cfg.OpenSearchIndex))
	}
	archiver, err := publish.NewArchiver(a.cfg.SupabaseURL, a.cfg.SupabaseServiceKey, a.cfg.SupabaseBucket)
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		sinks = append(sinks, archiver)
	}
	return publish.NewPublisher(a.logs.For(logger.ComponentPublish), sinks...), nil
}

// pipelineFor builds a pipeline over src, or over the configured sources.
func (a *app) pipelineFor(src links.Source) run.Runner {
	if src == nil {
		src = a.sources
	}
	return pipeline.New(pipeline.Dependencies{
		Links:    src,
		Scraper:  a.scraper,
		Store:    document.NewStore(a.cfg.JSONDir),
		OCR:      a.ocr,
		Asker:    a.asker,
		Detector: language.NewDetector(),
	}, pipeline.Options{
		ModelTimeout: a.cfg.ModelTimeout,
		MaxAttempts:  a.cfg.ModelMaxAttempts,
		Cleanup:      a.cfg.Cleanup,
		RetainImages: a.cfg.RetainImages,
		ImagesDir:    a.cfg.ImagesDir,
	}, a.logs)
}

func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
