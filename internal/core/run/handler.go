package run

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"formsai/internal/core/job"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type CreateResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

type StatusResponse struct {
	Success bool           `json:"success"`
	JobID   string         `json:"job_id"`
	Status  job.Status     `json:"status"`
	Data    *job.RunResult `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Handler struct {
	job *job.JobService
	run *Service
}

func NewHandler(jobs *job.JobService, run *Service) *Handler {
	return &Handler{job: jobs, run: run}
}

func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var req job.RunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body"})
		}
	}
	id, err := h.run.Enqueue(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(CreateResponse{Success: true, JobID: id})
}

func (h *Handler) HandleGet(c *fiber.Ctx) error {
	id := c.Params("jobId")
	j, err := h.job.GetJobStatus(c.Context(), id)
	if errors.Is(err, job.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not_found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(StatusResponse{Success: true, JobID: id, Status: j.Status, Data: j.Results, Error: j.Error})
}
