package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/scene"
	"github.com/bannerforge/api/internal/store"
)

// PreviewRenderer is the slice of the rendering service the template
// service needs for preview thumbnails. Nil disables previews.
type PreviewRenderer interface {
	RenderPreview(ctx context.Context, doc *model.SceneDocument, name string) (string, error)
}

// TemplateService owns the template lifecycle. On every save it seeds
// missing bindings from {{placeholder}} text and recomputes the variables
// cache from the document; the cache is never accepted from the client.
type TemplateService struct {
	templates store.TemplateStore
	previews  PreviewRenderer
}

func NewTemplateService(templates store.TemplateStore, previews PreviewRenderer) *TemplateService {
	return &TemplateService{templates: templates, previews: previews}
}

func (s *TemplateService) Create(ctx context.Context, req *model.TemplateSaveRequest) (*model.Template, error) {
	now := time.Now()
	t := &model.Template{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedAt: now,
	}
	s.applyDocument(t, &req.Document, now)
	if err := s.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	s.refreshPreview(ctx, t)
	return t, nil
}

func (s *TemplateService) Update(ctx context.Context, id string, req *model.TemplateSaveRequest) (*model.Template, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Name = req.Name
	s.applyDocument(t, &req.Document, time.Now())
	if err := s.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	s.refreshPreview(ctx, t)
	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	return s.templates.Get(ctx, id)
}

func (s *TemplateService) List(ctx context.Context) ([]*model.Template, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}

// Resize rescales the template document proportionally to the new canvas
// dimensions and re-saves it.
func (s *TemplateService) Resize(ctx context.Context, id string, width, height int) (*model.Template, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rescaled := scene.RescaleDocument(&t.Document, width, height)
	s.applyDocument(t, rescaled, time.Now())
	if err := s.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	s.refreshPreview(ctx, t)
	return t, nil
}

// Variables returns the cached variable contract for a template.
func (s *TemplateService) Variables(ctx context.Context, id string) ([]string, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Variables, nil
}

func (s *TemplateService) applyDocument(t *model.Template, doc *model.SceneDocument, now time.Time) {
	d := doc.Clone()
	scene.SeedBindings(d)
	t.Document = *d
	t.Width = d.Width
	t.Height = d.Height
	t.Variables = scene.ExtractVariables(d)
	t.UpdatedAt = now
}

func (s *TemplateService) refreshPreview(ctx context.Context, t *model.Template) {
	if s.previews == nil {
		return
	}
	ref, err := s.previews.RenderPreview(ctx, &t.Document, "preview_"+t.ID)
	if err != nil {
		// Previews are cosmetic; a failed preview never fails a save.
		log.Printf("Preview render failed for template %s: %v", t.ID, err)
		return
	}
	t.PreviewRef = ref
	if err := s.templates.Save(ctx, t); err != nil {
		log.Printf("Failed to persist preview ref for template %s: %v", t.ID, err)
	}
}
