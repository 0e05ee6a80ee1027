package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider is an in-memory Provider for single-process deployments
// and tests.
type MemoryProvider struct {
	mu           sync.RWMutex
	byKey        map[string]*Record
	byIdentifier map[string]*Record
	byProvider   map[string]*Record
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		byKey:        make(map[string]*Record),
		byIdentifier: make(map[string]*Record),
		byProvider:   make(map[string]*Record),
	}
}

func providerKey(provider, providerID string) string {
	return provider + "\x00" + providerID
}

// Add stores a record. A record without a Key gets one assigned.
func (m *MemoryProvider) Add(rec Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.Key == "" {
		rec.Key = uuid.NewString()
	}
	if _, exists := m.byKey[rec.Key]; exists {
		return nil, fmt.Errorf("duplicate user key: %s", rec.Key)
	}
	if rec.Identifier != "" {
		if _, exists := m.byIdentifier[rec.Identifier]; exists {
			return nil, fmt.Errorf("duplicate user identifier: %s", rec.Identifier)
		}
	}

	stored := rec
	m.byKey[stored.Key] = &stored
	if stored.Identifier != "" {
		m.byIdentifier[stored.Identifier] = &stored
	}
	if stored.Provider != "" && stored.ProviderID != "" {
		m.byProvider[providerKey(stored.Provider, stored.ProviderID)] = &stored
	}
	return copyRecord(&stored), nil
}

// FindByIdentifier implements Provider.
func (m *MemoryProvider) FindByIdentifier(ctx context.Context, identifier string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecord(m.byIdentifier[identifier]), nil
}

// FindByKey implements Provider.
func (m *MemoryProvider) FindByKey(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecord(m.byKey[key]), nil
}

// FindByProviderID implements Provider.
func (m *MemoryProvider) FindByProviderID(ctx context.Context, provider, providerID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecord(m.byProvider[providerKey(provider, providerID)]), nil
}

// Provision implements Provider.
func (m *MemoryProvider) Provision(ctx context.Context, rec Record) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec.Key = ""
	return m.Add(rec)
}

// copyRecord returns a defensive copy so callers cannot mutate stored
// state through the returned pointer.
func copyRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	out := *rec
	out.Roles = make([]string, len(rec.Roles))
	copy(out.Roles, rec.Roles)
	return &out
}
