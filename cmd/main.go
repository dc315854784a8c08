package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"formsai/internal/config"
	"formsai/internal/core/job"
	"formsai/internal/core/run"
	"formsai/internal/logger"
	tasks "formsai/internal/platform/tasks"
	"formsai/internal/server"
	"formsai/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logs := cfg.Logging()
	logr := logs.For("MAIN")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logs)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "run":
		err = runOnce(ctx, a, logr)
	case "serve":
		err = serve(ctx, a, logr)
	default:
		err = fmt.Errorf("unknown command %q, expected run or serve", command)
	}
	if err != nil {
		logr.LogError("Exiting", err)
		a.Close()
		stop()
		os.Exit(1)
	}
}

// runOnce processes the configured link sources and prints the final documents.
func runOnce(ctx context.Context, a *app, logr *logger.Logger) error {
	svc := run.NewService(a.pipelineFor, run.Options{Publisher: a.publisher}, logr)
	result, err := svc.Execute(ctx, job.RunRequest{})
	if errors.Is(err, run.ErrNoLinks) {
		logr.LogWarnf("No form links found in %s", a.cfg.InputDir)
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		logr.LogWarnf("Skipped %s", e.Error())
	}
	for _, f := range result.Final {
		fmt.Println(f)
	}
	return nil
}

// serve exposes the run API and processes queued runs in the same process.
func serve(ctx context.Context, a *app, logr *logger.Logger) error {
	if a.redis == nil {
		return errors.New("REDIS_ADDR is required to serve")
	}
	logr.LogInfof("Starting at %s (env=%s)", a.cfg.HTTPAddr, a.cfg.AppEnv)

	taskClient := tasks.New(a.redis)
	defer taskClient.Close()
	jobSvc := job.NewJobService(a.redis)
	runSvc := run.NewService(a.pipelineFor, run.Options{
		Publisher:  a.publisher,
		Jobs:       jobSvc,
		Tasks:      taskClient,
		MaxRetries: a.cfg.TaskMaxRetries,
	}, a.logs.For(logger.ComponentPipeline))

	mux := worker.NewMux()
	mux.HandleFunc(tasks.TaskTypeRun, runSvc.HandleTask)
	asynqServer := worker.NewServer(a.redis.AsynqRedisOpt())
	if err := asynqServer.Start(mux.Mux()); err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	httpApp := fiber.New(fiber.Config{
		AppName: "Forms AI",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Final documents are served from JSONDir under /files.
	httpApp.Static("/files", a.cfg.JSONDir)

	healthHandler := server.RegisterRoutes(httpApp, server.Dependencies{
		Job:    jobSvc,
		Run:    runSvc,
		Checks: a.checks,
		Log:    a.logs.For(logger.ComponentServer),
	})
	healthHandler.SetReady()

	go func() {
		<-ctx.Done()
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = httpApp.ShutdownWithTimeout(5 * time.Second)
	}()

	return httpApp.Listen(a.cfg.HTTPAddr)
}
