package scholarship

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"scholarship-service/common/metrics"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const table = "scholarships"

type ListFilter struct {
	AcademicLevel AcademicLevel
	Limit         int
	Offset        int
}

type Repository interface {
	Create(ctx context.Context, s *Scholarship) error
	GetByID(ctx context.Context, id uuid.UUID) (*Scholarship, error)
	Update(ctx context.Context, s *Scholarship) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	ListOpen(ctx context.Context, now time.Time, filter ListFilter) ([]Scholarship, error)
	CloseExpired(ctx context.Context, now time.Time) (int, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, s *Scholarship) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(s).Returning("*").Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Scholarship, error) {
	start := time.Now()
	s := new(Scholarship)
	err := r.db.NewSelect().Model(s).Where("id = ?", id).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScholarshipNotFound
		}
		return nil, err
	}
	return s, nil
}

// Update writes the editable fields. Status and the applicant counter are
// owned by UpdateStatus and the application store.
func (r *repository) Update(ctx context.Context, s *Scholarship) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(s).
		Column("title", "description", "amount", "deadline", "requirements", "max_applicants", "tags").
		Set("updated_at = current_timestamp").
		WherePK().
		Returning("*").
		Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	return checkAffected(result, err)
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Scholarship)(nil)).
		Set("status = ?", status).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	return checkAffected(result, err)
}

// ListOpen returns published scholarships whose deadline is still ahead, soonest first.
func (r *repository) ListOpen(ctx context.Context, now time.Time, filter ListFilter) ([]Scholarship, error) {
	start := time.Now()
	var out []Scholarship
	q := r.db.NewSelect().
		Model(&out).
		Where("status = ?", StatusPublished).
		Where("deadline > ?", now).
		Order("deadline ASC")
	if filter.AcademicLevel != "" {
		q = q.Where("COALESCE(requirements->>'academicLevel', '') IN (?, ?, '')", filter.AcademicLevel, LevelBoth)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	err := q.Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return out, err
}

// CloseExpired closes every published scholarship whose deadline has passed.
func (r *repository) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Scholarship)(nil)).
		Set("status = ?", StatusClosed).
		Set("updated_at = current_timestamp").
		Where("status = ?", StatusPublished).
		Where("deadline <= ?", now).
		Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

func checkAffected(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrScholarshipNotFound
	}
	return nil
}
