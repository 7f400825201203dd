package scholarship

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository backed by a map, for tests.
type MemoryRepository struct {
	mu           sync.Mutex
	scholarships map[uuid.UUID]*Scholarship
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{scholarships: map[uuid.UUID]*Scholarship{}}
}

func (m *MemoryRepository) Create(_ context.Context, s *Scholarship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusDraft
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	stored := *s
	m.scholarships[s.ID] = &stored
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Scholarship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scholarships[id]
	if !ok {
		return nil, ErrScholarshipNotFound
	}
	out := *s
	return &out, nil
}

func (m *MemoryRepository) Update(_ context.Context, s *Scholarship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.scholarships[s.ID]
	if !ok {
		return ErrScholarshipNotFound
	}
	s.Status = stored.Status
	s.CurrentApplicants = stored.CurrentApplicants
	s.UpdatedAt = time.Now()
	updated := *s
	m.scholarships[s.ID] = &updated
	return nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scholarships[id]
	if !ok {
		return ErrScholarshipNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepository) ListOpen(_ context.Context, now time.Time, filter ListFilter) ([]Scholarship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Scholarship
	for _, s := range m.scholarships {
		if s.Status != StatusPublished || !s.Deadline.After(now) {
			continue
		}
		if filter.AcademicLevel != "" && !s.Requirements.AcademicLevel.Admits(filter.AcademicLevel) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRepository) CloseExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.scholarships {
		if s.Status == StatusPublished && !s.Deadline.After(now) {
			s.Status = StatusClosed
			n++
		}
	}
	return n, nil
}

// Reserve applies the same guard and increment as the application store, for
// tests that exercise submission without Postgres.
func (m *MemoryRepository) Reserve(id uuid.UUID, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scholarships[id]
	if !ok || !s.AcceptsApplications(now) {
		return false
	}
	s.CurrentApplicants++
	return true
}
