package local

import (
	"context"
	"sync"
	"time"
)

// LockoutStore tracks password failures and lockouts to throttle brute-force
// attempts against the local backend.
type LockoutStore interface {
	// RecordFailure increments the failure count for the identifier.
	// ttl defines how long this failure record should be kept.
	RecordFailure(ctx context.Context, identifier string, ttl time.Duration) (int, error)

	// ClearFailures resets the failure count for the identifier.
	ClearFailures(ctx context.Context, identifier string) error

	// Lock manually locks the identifier for the given duration.
	Lock(ctx context.Context, identifier string, duration time.Duration) error

	// IsLocked checks if the identifier is currently locked.
	// Returns true and the expiry time if locked.
	IsLocked(ctx context.Context, identifier string) (bool, time.Time, error)
}

// LockoutConfig holds brute-force protection settings.
type LockoutConfig struct {
	// MaxFailures is the number of failures before lockout (e.g. 5)
	MaxFailures int

	// LockoutDuration is how long to lock the account (e.g. 15 minutes)
	LockoutDuration time.Duration

	// FailureWindow is how long failures are remembered (e.g. 15 minutes)
	FailureWindow time.Duration
}

// -- Memory Implementation --

type memRecord struct {
	failures    int
	failExp     time.Time
	lockedUntil time.Time
}

type MemoryLockoutStore struct {
	mu    sync.Mutex
	items map[string]*memRecord
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{
		items: make(map[string]*memRecord),
	}
}

func (s *MemoryLockoutStore) getRecord(id string) *memRecord {
	if r, ok := s.items[id]; ok {
		return r
	}
	r := &memRecord{}
	s.items[id] = r
	return r
}

func (s *MemoryLockoutStore) RecordFailure(ctx context.Context, identifier string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getRecord(identifier)
	now := time.Now()

	// Check expiry of existing failures
	if now.After(r.failExp) {
		r.failures = 0
	}

	r.failures++
	r.failExp = now.Add(ttl)

	return r.failures, nil
}

func (s *MemoryLockoutStore) ClearFailures(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, identifier)
	return nil
}

func (s *MemoryLockoutStore) Lock(ctx context.Context, identifier string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getRecord(identifier)
	r.lockedUntil = time.Now().Add(duration)
	return nil
}

func (s *MemoryLockoutStore) IsLocked(ctx context.Context, identifier string) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.items[identifier]; ok {
		if time.Now().Before(r.lockedUntil) {
			return true, r.lockedUntil, nil
		}
	}
	return false, time.Time{}, nil
}
