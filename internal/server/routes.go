package server

import (
	"github.com/gofiber/fiber/v2"

	"formsai/internal/core/job"
	"formsai/internal/core/run"
	"formsai/internal/health"
	"formsai/internal/logger"
)

type Dependencies struct {
	Job    *job.JobService
	Run    *run.Service
	Checks map[string]health.Check
	Log    *logger.Logger
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Log, d.Checks)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	runHandler := run.NewHandler(d.Job, d.Run)
	api.Post("/runs", runHandler.HandleCreate)
	api.Get("/runs/:jobId", runHandler.HandleGet)

	return healthHandler
}
