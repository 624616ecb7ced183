package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
)

// MemoryStore implements Store in process memory. Blobs are kept encoded so
// callers never share state with the store.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string]map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]map[string][]byte)}
}

// LoadProfile implements Store.
func (m *MemoryStore) LoadProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	ok, err := m.load(userID, KeyProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SaveProfile implements Store.
func (m *MemoryStore) SaveProfile(_ context.Context, userID string, p *domain.UserProfile) error {
	return m.save(userID, KeyProfile, p)
}

// LoadPackage implements Store.
func (m *MemoryStore) LoadPackage(_ context.Context, userID string) (*domain.WeeklyPackage, error) {
	var p domain.WeeklyPackage
	ok, err := m.load(userID, KeyPackage, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SavePackage implements Store.
func (m *MemoryStore) SavePackage(_ context.Context, userID string, p *domain.WeeklyPackage) error {
	return m.save(userID, KeyPackage, p)
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, userID)
	return nil
}

// ExpirePackages implements Store.
func (m *MemoryStore) ExpirePackages(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for userID, blobs := range m.blobs {
		raw, ok := blobs[KeyPackage]
		if !ok {
			continue
		}
		var p domain.WeeklyPackage
		if err := json.Unmarshal(raw, &p); err != nil {
			return n, fmt.Errorf("decode package for %s: %w", userID, err)
		}
		if p.Status != domain.PackageActive || !p.IsExpired(now) {
			continue
		}
		p.Status = domain.PackageExpired
		updated, err := json.Marshal(&p)
		if err != nil {
			return n, fmt.Errorf("encode package for %s: %w", userID, err)
		}
		blobs[KeyPackage] = updated
		n++
	}
	return n, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) load(userID, key string, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.blobs[userID][key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) save(userID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs[userID] == nil {
		m.blobs[userID] = make(map[string][]byte)
	}
	m.blobs[userID][key] = raw
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
