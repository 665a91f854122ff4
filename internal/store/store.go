// Package store persists templates and job records. The redis
// implementations are the production path; the in-memory ones back tests
// and development without a redis instance.
package store

import (
	"context"
	"errors"

	"github.com/bannerforge/api/internal/model"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrJobNotFound      = errors.New("job not found")
)

// TemplateStore owns template persistence. The variables cache inside a
// template is maintained by the template service on save; the store treats
// the whole record as opaque.
type TemplateStore interface {
	Save(ctx context.Context, t *model.Template) error
	Get(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context) ([]*model.Template, error)
	Delete(ctx context.Context, id string) error
}

// JobStore owns bulk-generation job records. A job is mutated only by the
// orchestrator run that created it.
type JobStore interface {
	Save(ctx context.Context, j *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}
