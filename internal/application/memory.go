package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"scholarship-service/internal/scholarship"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository for tests. Seats are reserved on the
// backing scholarship store under the same lock as the insert.
type MemoryRepository struct {
	mu           sync.Mutex
	apps         map[uuid.UUID]*Application
	scholarships *scholarship.MemoryRepository
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository(scholarships *scholarship.MemoryRepository) *MemoryRepository {
	return &MemoryRepository{
		apps:         map[uuid.UUID]*Application{},
		scholarships: scholarships,
	}
}

func (m *MemoryRepository) Create(_ context.Context, app *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.apps {
		if a.ApplicantID == app.ApplicantID && a.ScholarshipID == app.ScholarshipID {
			return ErrDuplicateApplication
		}
	}
	if !m.scholarships.Reserve(app.ScholarshipID, time.Now()) {
		return ErrScholarshipNotAcceptingApplications
	}

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Documents == nil {
		app.Documents = []Document{}
	}
	if app.Reviews == nil {
		app.Reviews = []Review{}
	}
	m.apps[app.ID] = clone(app)
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	m.mu.Lock()
	app, ok := m.apps[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrApplicationNotFound
	}
	out := clone(app)
	m.mu.Unlock()

	m.withSummary(ctx, out)
	return out, nil
}

func (m *MemoryRepository) Exists(_ context.Context, applicantID, scholarshipID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.ApplicantID == applicantID && a.ScholarshipID == scholarshipID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]Application, error) {
	return m.list(ctx, func(a *Application) bool { return a.ApplicantID == applicantID }, 0, 0)
}

func (m *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]Application, error) {
	return m.list(ctx, func(a *Application) bool {
		if filter.ScholarshipID != uuid.Nil && a.ScholarshipID != filter.ScholarshipID {
			return false
		}
		return filter.Status == "" || a.Status == filter.Status
	}, filter.Limit, filter.Offset)
}

func (m *MemoryRepository) list(ctx context.Context, match func(*Application) bool, limit, offset int) ([]Application, error) {
	m.mu.Lock()
	var out []Application
	for _, a := range m.apps {
		if match(a) {
			out = append(out, *clone(a))
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		m.withSummary(ctx, &out[i])
	}
	return out, nil
}

func (m *MemoryRepository) Update(ctx context.Context, id uuid.UUID, fn func(*Application) error) (*Application, error) {
	m.mu.Lock()
	stored, ok := m.apps[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrApplicationNotFound
	}

	working := clone(stored)
	if err := fn(working); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	m.apps[id] = working
	out := clone(working)
	m.mu.Unlock()

	m.withSummary(ctx, out)
	return out, nil
}

func (m *MemoryRepository) withSummary(ctx context.Context, app *Application) {
	if sch, err := m.scholarships.GetByID(ctx, app.ScholarshipID); err == nil {
		summary := sch.Summary()
		app.Summary = &summary
	}
}

func clone(a *Application) *Application {
	out := *a
	out.Documents = append([]Document{}, a.Documents...)
	out.Reviews = append([]Review{}, a.Reviews...)
	out.Scholarship = nil
	out.Summary = nil
	return &out
}
