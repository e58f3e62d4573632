package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Lllllllleong/detailsheetindex/internal/models"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and the
// "memory" store backend.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]models.Project
	records  map[string]models.IndexRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]models.Project),
		records:  make(map[string]models.IndexRecord),
	}
}

func (s *MemoryStore) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.projects[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		p := p
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) CreateRecord(_ context.Context, r *models.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.records[r.ID] = *r
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id string) (*models.IndexRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) ListByProject(_ context.Context, projectID string) ([]*models.IndexRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.IndexRecord
	for _, r := range s.records {
		if r.ProjectID == projectID {
			r := r
			out = append(out, &r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) ListIndexed(_ context.Context, projectID string) ([]*models.IndexRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.IndexRecord
	for _, r := range s.records {
		if r.Status != models.StatusIndexed {
			continue
		}
		if projectID != "" && r.ProjectID != projectID {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, projectID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var indexed, errored int
	for _, r := range s.records {
		if r.ProjectID != projectID {
			continue
		}
		switch r.Status {
		case models.StatusIndexed:
			indexed++
		case models.StatusError:
			errored++
		}
	}
	return indexed, errored, nil
}

func (s *MemoryStore) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) DeleteByProject(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.ProjectID == projectID {
			delete(s.records, id)
		}
	}
	return nil
}

// sortRecords orders by creation time, then document and page so that the
// order is deterministic when timestamps collide.
func sortRecords(records []*models.IndexRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.PageNumber < b.PageNumber
	})
}
