package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateEmail      = errors.New("an account with this email already exists")
	ErrDuplicateProviderID = errors.New("an account for this identity already exists")
	ErrAdminRequired       = errors.New("admin role required")
	ErrInvalidRole         = errors.New("invalid role")
)

// NewAccount describes an account about to be created from a verified identity.
type NewAccount struct {
	ProviderID string
	Email      string
	Verified   bool
	Profile    Profile
}

type Service interface {
	Register(ctx context.Context, in NewAccount) (*Account, error)
	FindOrCreate(ctx context.Context, in NewAccount) (*Account, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByProviderID(ctx context.Context, providerID string) (*Account, error)
	MarkVerified(ctx context.Context, acc *Account) error
	UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) (*Account, error)
	UpdateRole(ctx context.Context, actor Role, id uuid.UUID, role Role) (*Account, error)
	List(ctx context.Context, actor Role, filter ListFilter) ([]Account, error)
	Delete(ctx context.Context, actor Role, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Register creates an applicant account. Elevated roles are only reachable through UpdateRole.
func (s *service) Register(ctx context.Context, in NewAccount) (*Account, error) {
	acc := &Account{
		ProviderID: in.ProviderID,
		Email:      in.Email,
		Role:       RoleApplicant,
		Verified:   in.Verified,
		Profile:    in.Profile,
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// FindOrCreate returns the account bound to the identity, creating it on first sight.
// The bool reports whether a new account was created.
func (s *service) FindOrCreate(ctx context.Context, in NewAccount) (*Account, bool, error) {
	acc, err := s.repo.GetByProviderID(ctx, in.ProviderID)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	acc, err = s.Register(ctx, in)
	if errors.Is(err, ErrDuplicateProviderID) {
		// lost a race with a concurrent first login
		acc, err = s.repo.GetByProviderID(ctx, in.ProviderID)
		return acc, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByProviderID(ctx context.Context, providerID string) (*Account, error) {
	return s.repo.GetByProviderID(ctx, providerID)
}

// MarkVerified writes the local verified flag through if it is not set yet.
func (s *service) MarkVerified(ctx context.Context, acc *Account) error {
	if acc.Verified {
		return nil
	}
	if err := s.repo.UpdateVerification(ctx, acc.ID, true); err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}
	acc.Verified = true
	return nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) (*Account, error) {
	return s.repo.UpdateProfile(ctx, id, profile)
}

func (s *service) UpdateRole(ctx context.Context, actor Role, id uuid.UUID, role Role) (*Account, error) {
	if actor != RoleAdmin {
		return nil, ErrAdminRequired
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.repo.UpdateRole(ctx, id, role)
}

func (s *service) List(ctx context.Context, actor Role, filter ListFilter) ([]Account, error) {
	if actor != RoleAdmin {
		return nil, ErrAdminRequired
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return s.repo.List(ctx, filter)
}

func (s *service) Delete(ctx context.Context, actor Role, id uuid.UUID) error {
	if actor != RoleAdmin {
		return ErrAdminRequired
	}
	return s.repo.SoftDelete(ctx, id)
}
