package revocation

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// MemoryStore is an in-process Store for single-node deployments and
// tests. Lookups check expiry lazily; a janitor goroutine additionally
// sweeps dead entries so memory stays bounded even for tokens nobody
// queries again.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewMemoryStore starts the janitor and returns a ready store. Call Close
// when done.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	s := &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go s.janitor(sweepInterval)
	return s
}

// Blacklist records the entry until now+ttl.
func (s *MemoryStore) Blacklist(_ context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	s.entries[tokenHash] = s.now().Add(ttl)
	s.mu.Unlock()
	return nil
}

// IsBlacklisted reports whether the entry exists and is still live.
func (s *MemoryStore) IsBlacklisted(_ context.Context, tokenHash string) (bool, error) {
	s.mu.RLock()
	expiry, ok := s.entries[tokenHash]
	s.mu.RUnlock()

	return ok && s.now().Before(expiry), nil
}

// Len reports the current entry count, dead entries included until the
// next sweep.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor. Idempotent.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	for hash, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, hash)
		}
	}
	s.mu.Unlock()
}
