package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/service"
	"github.com/bannerforge/api/internal/store"
	"github.com/bannerforge/api/pkg/response"
)

type GenerateHandler struct {
	service   *service.GenerateService
	validator *validator.Validate
}

func NewGenerateHandler(svc *service.GenerateService, v *validator.Validate) *GenerateHandler {
	return &GenerateHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/generate — the synchronous bulk path. The
// response carries the finished batch; partial failure is completed with a
// non-empty errors list.
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if err != nil {
		return err
	}

	result, svcErr := h.service.Generate(c.Context(), req)
	if svcErr != nil {
		return h.mapError(c, svcErr)
	}
	return response.OK(c, result)
}

// GenerateAsync handles POST /api/generate/async — validates and queues the
// batch, returning 202 with the job ID.
func (h *GenerateHandler) GenerateAsync(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if err != nil {
		return err
	}

	result, svcErr := h.service.StartGenerate(c.Context(), req)
	if svcErr != nil {
		return h.mapError(c, svcErr)
	}
	return response.Accepted(c, result)
}

func (h *GenerateHandler) parse(c *fiber.Ctx) (*model.GenerateRequest, error) {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return &req, nil
}

func (h *GenerateHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrTemplateNotFound):
		return response.NotFound(c, "Template not found")
	case errors.Is(err, service.ErrEmptyData), errors.Is(err, service.ErrMissingVariable):
		return response.ValidationError(c, err.Error(), nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}
