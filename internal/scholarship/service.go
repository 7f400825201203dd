package scholarship

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scholarship-service/internal/account"
	"scholarship-service/internal/auth"
	"scholarship-service/internal/metrics"

	"github.com/google/uuid"
)

var (
	ErrScholarshipNotFound   = errors.New("scholarship not found")
	ErrNotOwner              = errors.New("only the creating admin may modify this scholarship")
	ErrAdminRequired         = errors.New("admin role required")
	ErrInvalidStatus         = errors.New("invalid scholarship status")
	ErrInvalidTransition     = errors.New("invalid scholarship status transition")
	ErrDeadlineInPast        = errors.New("deadline must be in the future")
	ErrMaxApplicantsTooSmall = errors.New("max applicants is below the current number of applications")
)

type Input struct {
	Title         string       `json:"title" validate:"required,max=200"`
	Description   string       `json:"description" validate:"required,max=5000"`
	Amount        float64      `json:"amount" validate:"gte=0"`
	Deadline      time.Time    `json:"deadline" validate:"required"`
	Requirements  Requirements `json:"requirements"`
	MaxApplicants *int         `json:"maxApplicants" validate:"omitempty,gte=1"`
	Tags          []string     `json:"tags" validate:"dive,max=50"`
	Status        Status       `json:"status" validate:"omitempty,oneof=draft published"`
}

type Service interface {
	Create(ctx context.Context, p auth.Principal, in Input) (*Scholarship, error)
	Update(ctx context.Context, p auth.Principal, id uuid.UUID, in Input) (*Scholarship, error)
	ChangeStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status Status) (*Scholarship, error)
	Get(ctx context.Context, id uuid.UUID) (*Scholarship, error)
	ListOpen(ctx context.Context, filter ListFilter) ([]Scholarship, error)
	CloseExpired(ctx context.Context) (int, error)
}

type service struct {
	repo    Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, logger *slog.Logger, m *metrics.Metrics) Service {
	return &service{repo: repo, logger: logger, metrics: m, now: time.Now}
}

func (s *service) Create(ctx context.Context, p auth.Principal, in Input) (*Scholarship, error) {
	if p.Role != account.RoleAdmin {
		return nil, ErrAdminRequired
	}
	if !in.Deadline.After(s.now()) {
		return nil, ErrDeadlineInPast
	}

	status := in.Status
	if status == "" {
		status = StatusDraft
	}

	sch := &Scholarship{
		Title:         in.Title,
		Description:   in.Description,
		Amount:        in.Amount,
		Deadline:      in.Deadline.UTC(),
		Requirements:  in.Requirements,
		Status:        status,
		CreatedBy:     p.AccountID,
		MaxApplicants: in.MaxApplicants,
		Tags:          in.Tags,
	}
	if err := s.repo.Create(ctx, sch); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "scholarship created", "scholarship_id", sch.ID, "status", sch.Status)
	return sch, nil
}

func (s *service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in Input) (*Scholarship, error) {
	sch, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !in.Deadline.Equal(sch.Deadline) && !in.Deadline.After(s.now()) {
		return nil, ErrDeadlineInPast
	}
	if in.MaxApplicants != nil && *in.MaxApplicants < sch.CurrentApplicants {
		return nil, ErrMaxApplicantsTooSmall
	}

	sch.Title = in.Title
	sch.Description = in.Description
	sch.Amount = in.Amount
	sch.Deadline = in.Deadline.UTC()
	sch.Requirements = in.Requirements
	sch.MaxApplicants = in.MaxApplicants
	sch.Tags = in.Tags

	if err := s.repo.Update(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *service) ChangeStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status Status) (*Scholarship, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	sch, err := s.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sch.Status, status) {
		return nil, ErrInvalidTransition
	}
	if sch.Status == status {
		return sch, nil
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "scholarship status changed", "scholarship_id", id, "from", sch.Status, "to", status)
	sch.Status = status
	return sch, nil
}

// Get hides drafts from the public catalogue.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Scholarship, error) {
	sch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sch.Status == StatusDraft {
		return nil, ErrScholarshipNotFound
	}
	return sch, nil
}

func (s *service) ListOpen(ctx context.Context, filter ListFilter) ([]Scholarship, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return s.repo.ListOpen(ctx, s.now(), filter)
}

func (s *service) CloseExpired(ctx context.Context) (int, error) {
	n, err := s.repo.CloseExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.RecordScholarshipsClosed(ctx, n)
	return n, nil
}

func (s *service) owned(ctx context.Context, p auth.Principal, id uuid.UUID) (*Scholarship, error) {
	if p.Role != account.RoleAdmin {
		return nil, ErrAdminRequired
	}
	sch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sch.CreatedBy != p.AccountID {
		return nil, ErrNotOwner
	}
	return sch, nil
}
