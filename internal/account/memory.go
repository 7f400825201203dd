package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository backed by a map, used by tests of
// packages that sit on top of accounts.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
	writes   int
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: map[uuid.UUID]*Account{}}
}

func (m *MemoryRepository) Create(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.ProviderID == account.ProviderID {
			return ErrDuplicateProviderID
		}
		if existing.Email == account.Email {
			return ErrDuplicateEmail
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.Role == "" {
		account.Role = RoleApplicant
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now

	stored := *account
	m.accounts[account.ID] = &stored
	m.writes++
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || !acc.DeletedAt.IsZero() {
		return nil, ErrAccountNotFound
	}
	out := *acc
	return &out, nil
}

func (m *MemoryRepository) GetByProviderID(_ context.Context, providerID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.ProviderID == providerID && acc.DeletedAt.IsZero() {
			out := *acc
			return &out, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *MemoryRepository) UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	if err := m.mutate(id, func(a *Account) { a.Role = role }); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *MemoryRepository) UpdateVerification(_ context.Context, id uuid.UUID, verified bool) error {
	return m.mutate(id, func(a *Account) { a.Verified = verified })
}

func (m *MemoryRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) (*Account, error) {
	if err := m.mutate(id, func(a *Account) { a.Profile = profile }); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *MemoryRepository) mutate(id uuid.UUID, fn func(*Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || !acc.DeletedAt.IsZero() {
		return ErrAccountNotFound
	}
	fn(acc)
	acc.UpdatedAt = time.Now()
	m.writes++
	return nil
}

func (m *MemoryRepository) List(_ context.Context, filter ListFilter) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Account
	for _, acc := range m.accounts {
		if !acc.DeletedAt.IsZero() || (filter.Role != "" && acc.Role != filter.Role) {
			continue
		}
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
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

func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, acc := range m.accounts {
		if acc.DeletedAt.IsZero() {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	return m.mutate(id, func(a *Account) { a.DeletedAt = time.Now() })
}

// Writes counts successful mutations, letting tests assert that nothing was written.
func (m *MemoryRepository) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
