package model

import "time"

// Template is the persisted design template. Variables is a cache derived
// from Document on every save; it is never hand-edited and the rendering
// path never mutates it.
type Template struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Document   SceneDocument `json:"document"`
	Variables  []string      `json:"variables"`
	PreviewRef string        `json:"previewRef,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// TemplateSaveRequest creates or replaces a template document.
type TemplateSaveRequest struct {
	Name     string        `json:"name" validate:"required,min=1,max=200"`
	Document SceneDocument `json:"document" validate:"required"`
}

// TemplateResizeRequest rescales a template to new canvas dimensions.
type TemplateResizeRequest struct {
	Width  int `json:"width" validate:"required,min=1,max=10000"`
	Height int `json:"height" validate:"required,min=1,max=10000"`
}

// TemplateResponse is the API shape of a template.
type TemplateResponse struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Document   SceneDocument `json:"document"`
	Variables  []string      `json:"variables"`
	PreviewRef string        `json:"previewRef,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// TemplateListItem omits the document for listing endpoints.
type TemplateListItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Variables  []string  `json:"variables"`
	PreviewRef string    `json:"previewRef,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TemplateVariablesResponse reports the declared variable contract.
type TemplateVariablesResponse struct {
	TemplateID string   `json:"templateId"`
	Variables  []string `json:"variables"`
}

func (t *Template) ToResponse() *TemplateResponse {
	return &TemplateResponse{
		ID:         t.ID,
		Name:       t.Name,
		Width:      t.Width,
		Height:     t.Height,
		Document:   t.Document,
		Variables:  t.Variables,
		PreviewRef: t.PreviewRef,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func (t *Template) ToListItem() TemplateListItem {
	return TemplateListItem{
		ID:         t.ID,
		Name:       t.Name,
		Width:      t.Width,
		Height:     t.Height,
		Variables:  t.Variables,
		PreviewRef: t.PreviewRef,
		UpdatedAt:  t.UpdatedAt,
	}
}
