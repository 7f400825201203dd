package identity

import (
	"context"
	"sync"
)

// Fake is an in-memory Provider for tests. Tokens map to identities, and
// Lookup answers from a separate table so tests can model a provider whose
// state moved on after the token was minted.
type Fake struct {
	mu          sync.Mutex
	tokens      map[string]Identity
	accounts    map[string]Identity
	lookups     int
	sentTo      []string
	LookupError error
}

var _ Provider = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		tokens:   map[string]Identity{},
		accounts: map[string]Identity{},
	}
}

// AddToken registers token as proof of id and records id at the provider.
func (f *Fake) AddToken(token string, id Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = id
	if _, ok := f.accounts[id.ProviderID]; !ok {
		f.accounts[id.ProviderID] = id
	}
}

// SetProviderVerified changes the live provider state without touching issued tokens.
func (f *Fake) SetProviderVerified(providerID string, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.accounts[providerID]
	id.ProviderID = providerID
	id.ProviderVerified = verified
	f.accounts[providerID] = id
}

func (f *Fake) Verify(_ context.Context, token string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

func (f *Fake) Lookup(_ context.Context, providerID string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.LookupError != nil {
		return nil, f.LookupError
	}
	id, ok := f.accounts[providerID]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

func (f *Fake) SendVerificationEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return ErrInvalidToken
	}
	f.sentTo = append(f.sentTo, id.Email)
	return nil
}

func (f *Fake) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func (f *Fake) VerificationEmailsSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sentTo...)
}
