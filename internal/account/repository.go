package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"scholarship-service/common/metrics"
	"scholarship-service/internal/db"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const table = "accounts"

type ListFilter struct {
	Role   Role
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByProviderID(ctx context.Context, providerID string) (*Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, verified bool) error
	UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) (*Account, error)
	List(ctx context.Context, filter ListFilter) ([]Account, error)
	Count(ctx context.Context) (int, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
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

func (r *repository) Create(ctx context.Context, account *Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(account).Returning("*").Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)

	if err != nil {
		if db.IsUniqueViolation(err) {
			if strings.Contains(db.ConstraintName(err), "provider_id") {
				return ErrDuplicateProviderID
			}
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *repository) GetByProviderID(ctx context.Context, providerID string) (*Account, error) {
	return r.getOne(ctx, "provider_id = ?", providerID)
}

func (r *repository) getOne(ctx context.Context, where string, arg any) (*Account, error) {
	start := time.Now()
	account := new(Account)
	err := r.db.NewSelect().Model(account).Where(where, arg).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *repository) UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	if err := r.update(ctx, id, "role = ?", role); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repository) UpdateVerification(ctx context.Context, id uuid.UUID, verified bool) error {
	return r.update(ctx, id, "verified = ?", verified)
}

func (r *repository) UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) (*Account, error) {
	if err := r.update(ctx, id, "profile = ?", &profile); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repository) update(ctx context.Context, id uuid.UUID, set string, arg any) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set(set, arg).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	start := time.Now()
	var accounts []Account
	q := r.db.NewSelect().Model(&accounts).Order("created_at DESC")
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	err := q.Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return accounts, err
}

func (r *repository) Count(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := r.db.NewSelect().Model((*Account)(nil)).Count(ctx)
	r.metrics.Database.RecordQuery(ctx, "count", table, time.Since(start), err)
	return count, err
}

// SoftDelete stamps deleted_at. Applications referencing the account are kept.
func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	result, err := r.db.NewDelete().Model((*Account)(nil)).Where("id = ?", id).Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}
