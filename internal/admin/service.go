// Package admin serves the administrator dashboard and user management.
package admin

import (
	"context"
	"log/slog"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/auth"

	"github.com/google/uuid"
)

type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	ApplicationStats(ctx context.Context) (*ApplicationStats, error)
	ScholarshipStats(ctx context.Context) (*ScholarshipStats, error)
	ListUsers(ctx context.Context, p auth.Principal, filter account.ListFilter) ([]account.Account, error)
	UpdateRole(ctx context.Context, p auth.Principal, id uuid.UUID, role account.Role) (*account.Account, error)
	DeleteUser(ctx context.Context, p auth.Principal, id uuid.UUID) error
}

type service struct {
	stats    StatsRepository
	accounts account.Service
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(stats StatsRepository, accounts account.Service, logger *slog.Logger) Service {
	return &service{
		stats:    stats,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	return s.stats.Dashboard(ctx, s.now().UTC())
}

func (s *service) ApplicationStats(ctx context.Context) (*ApplicationStats, error) {
	return s.stats.ApplicationStats(ctx)
}

func (s *service) ScholarshipStats(ctx context.Context) (*ScholarshipStats, error) {
	return s.stats.ScholarshipStats(ctx)
}

func (s *service) ListUsers(ctx context.Context, p auth.Principal, filter account.ListFilter) ([]account.Account, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 100
	}
	return s.accounts.List(ctx, p.Role, filter)
}

func (s *service) UpdateRole(ctx context.Context, p auth.Principal, id uuid.UUID, role account.Role) (*account.Account, error) {
	acc, err := s.accounts.UpdateRole(ctx, p.Role, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account role changed", "account_id", id, "role", role, "actor_id", p.AccountID)
	return acc, nil
}

func (s *service) DeleteUser(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if err := s.accounts.Delete(ctx, p.Role, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account deleted", "account_id", id, "actor_id", p.AccountID)
	return nil
}
