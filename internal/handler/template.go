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

type TemplateHandler struct {
	service   *service.TemplateService
	validator *validator.Validate
}

func NewTemplateHandler(svc *service.TemplateService, v *validator.Validate) *TemplateHandler {
	return &TemplateHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/templates
func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	var req model.TemplateSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.Document.Width < 1 || req.Document.Height < 1 {
		return response.ValidationError(c, "Document dimensions must be positive", nil)
	}

	t, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, t.ToResponse())
}

// List handles GET /api/templates
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	templates, err := h.service.List(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	items := make([]model.TemplateListItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, t.ToListItem())
	}
	return response.OK(c, fiber.Map{"templates": items})
}

// Get handles GET /api/templates/:id
func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	t, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return response.NotFound(c, "Template not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, t.ToResponse())
}

// Update handles PUT /api/templates/:id
func (h *TemplateHandler) Update(c *fiber.Ctx) error {
	var req model.TemplateSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.Document.Width < 1 || req.Document.Height < 1 {
		return response.ValidationError(c, "Document dimensions must be positive", nil)
	}

	t, err := h.service.Update(c.Context(), c.Params("id"), &req)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return response.NotFound(c, "Template not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, t.ToResponse())
}

// Delete handles DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return response.NotFound(c, "Template not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.NoContent(c)
}

// Resize handles POST /api/templates/:id/resize
func (h *TemplateHandler) Resize(c *fiber.Ctx) error {
	var req model.TemplateResizeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	t, err := h.service.Resize(c.Context(), c.Params("id"), req.Width, req.Height)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return response.NotFound(c, "Template not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, t.ToResponse())
}

// Variables handles GET /api/templates/:id/variables
func (h *TemplateHandler) Variables(c *fiber.Ctx) error {
	id := c.Params("id")
	vars, err := h.service.Variables(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return response.NotFound(c, "Template not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, model.TemplateVariablesResponse{
		TemplateID: id,
		Variables:  vars,
	})
}
