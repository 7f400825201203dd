package auth

import (
	"context"
	"errors"
	"log/slog"

	"scholarship-service/internal/account"
	"scholarship-service/internal/identity"
	"scholarship-service/internal/metrics"
	"scholarship-service/internal/notification"

	"github.com/google/uuid"
)

var ErrEmailNotVerified = errors.New("email address is not verified")

type Service interface {
	Register(ctx context.Context, id identity.Identity, profile account.Profile) (*account.Account, error)
	Login(ctx context.Context, id identity.Identity) (*account.Account, error)
	SocialLogin(ctx context.Context, id identity.Identity, profile account.Profile) (*account.Account, error)
	VerifyEmail(ctx context.Context, id identity.Identity) (*account.Account, error)
	SendVerification(ctx context.Context, token string) error
	VerificationStatus(ctx context.Context, id identity.Identity) bool
	Profile(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, profile account.Profile) (*account.Account, error)
}

type service struct {
	provider identity.Provider
	accounts account.Service
	notifier notification.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(provider identity.Provider, accounts account.Service, notifier notification.Notifier, logger *slog.Logger, m *metrics.Metrics) Service {
	return &service{
		provider: provider,
		accounts: accounts,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
	}
}

// Register creates the applicant account bound to a verified token. The
// email itself does not need to be verified yet.
func (s *service) Register(ctx context.Context, id identity.Identity, profile account.Profile) (*account.Account, error) {
	acc, err := s.accounts.Register(ctx, account.NewAccount{
		ProviderID: id.ProviderID,
		Email:      id.Email,
		Verified:   id.ProviderVerified,
		Profile:    profile,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", acc.ID)
	s.metrics.RecordAccountRegistered(ctx, "direct")
	s.welcome(acc)
	return acc, nil
}

func (s *service) Login(ctx context.Context, id identity.Identity) (*account.Account, error) {
	verified, err := providerVerified(ctx, s.provider, &id)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}
	if !verified {
		return nil, ErrEmailNotVerified
	}

	acc, err := s.accounts.GetByProviderID(ctx, id.ProviderID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.MarkVerified(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// SocialLogin finds or creates the account behind a federated sign-in.
func (s *service) SocialLogin(ctx context.Context, id identity.Identity, profile account.Profile) (*account.Account, error) {
	acc, created, err := s.accounts.FindOrCreate(ctx, account.NewAccount{
		ProviderID: id.ProviderID,
		Email:      id.Email,
		Verified:   id.ProviderVerified,
		Profile:    profile,
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.InfoContext(ctx, "account created from social login", "account_id", acc.ID)
		s.metrics.RecordAccountRegistered(ctx, "social")
		s.welcome(acc)
	}
	if id.ProviderVerified {
		if err := s.accounts.MarkVerified(ctx, acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// VerifyEmail asks the provider for the current state and mirrors it locally.
func (s *service) VerifyEmail(ctx context.Context, id identity.Identity) (*account.Account, error) {
	fresh, err := s.provider.Lookup(ctx, id.ProviderID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}
	if !fresh.ProviderVerified {
		return nil, ErrEmailNotVerified
	}

	acc, err := s.accounts.GetByProviderID(ctx, id.ProviderID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.MarkVerified(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *service) SendVerification(ctx context.Context, token string) error {
	return s.provider.SendVerificationEmail(ctx, token)
}

// VerificationStatus falls back to the token claim when the provider is unreachable.
func (s *service) VerificationStatus(ctx context.Context, id identity.Identity) bool {
	fresh, err := s.provider.Lookup(ctx, id.ProviderID)
	if err != nil {
		s.logger.WarnContext(ctx, "verification lookup failed, using token claim", "error", err)
		return id.ProviderVerified
	}
	return fresh.ProviderVerified
}

func (s *service) Profile(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

func (s *service) UpdateProfile(ctx context.Context, accountID uuid.UUID, profile account.Profile) (*account.Account, error) {
	return s.accounts.UpdateProfile(ctx, accountID, profile)
}

func (s *service) welcome(acc *account.Account) {
	name := acc.Profile.FirstName
	if name == "" {
		name = acc.Email
	}
	s.notifier.Deliver(acc.Email, notification.TemplateWelcome, map[string]any{"FirstName": name})
}

// RedirectFor is the landing page for a role after login.
func RedirectFor(role account.Role) string {
	switch role {
	case account.RoleAdmin:
		return "/admin/dashboard"
	case account.RoleReviewer:
		return "/dashboard/reviewer"
	default:
		return "/dashboard/applicant"
	}
}
