package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bannerforge/api/internal/service"
	"github.com/bannerforge/api/internal/store"
	"github.com/bannerforge/api/pkg/response"
)

type JobHandler struct {
	service *service.GenerateService
}

func NewJobHandler(svc *service.GenerateService) *JobHandler {
	return &JobHandler{service: svc}
}

// Status handles GET /api/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job.ToStatusResponse())
}
