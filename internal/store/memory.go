package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bannerforge/api/internal/model"
)

// MemoryTemplateStore is a map-backed TemplateStore. Records are copied
// through JSON so callers never share mutable state with the store.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string][]byte
}

func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string][]byte)}
}

func (s *MemoryTemplateStore) Save(ctx context.Context, t *model.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.templates[t.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryTemplateStore) Get(ctx context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	data, ok := s.templates[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTemplateNotFound
	}
	var t model.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MemoryTemplateStore) List(ctx context.Context) ([]*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Template, 0, len(s.templates))
	for _, data := range s.templates {
		var t model.Template
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, nil
}

func (s *MemoryTemplateStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(s.templates, id)
	return nil
}

// MemoryJobStore is a map-backed JobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string][]byte
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string][]byte)}
}

func (s *MemoryJobStore) Save(ctx context.Context, j *model.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[j.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	data, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	var j model.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Count reports the number of stored jobs. Tests use it to assert that a
// rejected request created no job record.
func (s *MemoryJobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
