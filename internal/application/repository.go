package application

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"scholarship-service/common/metrics"
	"scholarship-service/internal/db"
	"scholarship-service/internal/scholarship"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const table = "applications"

type ListFilter struct {
	ScholarshipID uuid.UUID
	Status        Status
	Limit         int
	Offset        int
}

type Repository interface {
	// Create inserts app and reserves a seat on its scholarship in one
	// transaction. Nothing is written when either step fails.
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	Exists(ctx context.Context, applicantID, scholarshipID uuid.UUID) (bool, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]Application, error)
	List(ctx context.Context, filter ListFilter) ([]Application, error)
	// Update locks the row, applies fn and saves the result. fn errors abort without writing.
	Update(ctx context.Context, id uuid.UUID, fn func(*Application) error) (*Application, error)
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

func (r *repository) Create(ctx context.Context, app *Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Documents == nil {
		app.Documents = []Document{}
	}
	if app.Reviews == nil {
		app.Reviews = []Review{}
	}

	start := time.Now()
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(app).Returning("*").Exec(ctx); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateApplication
			}
			return err
		}

		result, err := tx.NewUpdate().
			Model((*scholarship.Scholarship)(nil)).
			Set("current_applicants = current_applicants + 1").
			Set("updated_at = current_timestamp").
			Where("id = ?", app.ScholarshipID).
			Where("status = ?", scholarship.StatusPublished).
			Where("deadline > now()").
			Where("(max_applicants IS NULL OR current_applicants < max_applicants)").
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrScholarshipNotAcceptingApplications
		}
		return nil
	})
	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	start := time.Now()
	app := new(Application)
	err := r.db.NewSelect().
		Model(app).
		Relation("Scholarship").
		Where("app.id = ?", id).
		Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	app.resolve()
	return app, nil
}

func (r *repository) Exists(ctx context.Context, applicantID, scholarshipID uuid.UUID) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*Application)(nil)).
		Where("applicant_id = ?", applicantID).
		Where("scholarship_id = ?", scholarshipID).
		Exists(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)
	return exists, err
}

func (r *repository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]Application, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("app.applicant_id = ?", applicantID)
	})
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Application, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.ScholarshipID != uuid.Nil {
			q = q.Where("app.scholarship_id = ?", filter.ScholarshipID)
		}
		if filter.Status != "" {
			q = q.Where("app.status = ?", filter.Status)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		return q
	})
}

func (r *repository) list(ctx context.Context, apply func(*bun.SelectQuery) *bun.SelectQuery) ([]Application, error) {
	start := time.Now()
	var apps []Application
	q := r.db.NewSelect().
		Model(&apps).
		Relation("Scholarship").
		Order("app.submitted_at DESC")
	err := apply(q).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		return nil, err
	}
	for i := range apps {
		apps[i].resolve()
	}
	return apps, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fn func(*Application) error) (*Application, error) {
	start := time.Now()
	app := new(Application)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(app).Where("id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrApplicationNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(app); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model(app).
			Column("status", "documents", "reviews").
			Set("updated_at = current_timestamp").
			WherePK().
			Returning("*").
			Exec(ctx)
		return err
	})
	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	if err != nil {
		return nil, err
	}
	app.resolve()
	return app, nil
}
