package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/bantay/core"
)

// Storage keeps the bearer token in process memory. Nothing survives a restart.
type Storage struct {
	mu       sync.RWMutex
	token    string
	storedAt time.Time
	ttl      time.Duration // 0 keeps the token until cleared

	// counters
	loads  int64
	misses int64
	saves  int64
	clears int64
}

var _ core.StorageWithStats = (*Storage)(nil)

// New creates an empty storage. A positive ttl expires the token that long after it was saved.
func New(ttl time.Duration) *Storage {
	return &Storage{ttl: ttl}
}

func (s *Storage) LoadToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, storedAt := s.token, s.storedAt
	s.mu.RUnlock()

	atomic.AddInt64(&s.loads, 1)
	if token == "" {
		atomic.AddInt64(&s.misses, 1)
		return "", core.ErrTokenNotFound
	}

	if s.ttl > 0 && time.Since(storedAt) > s.ttl {
		// expired
		atomic.AddInt64(&s.misses, 1)
		s.mu.Lock()
		if s.storedAt.Equal(storedAt) {
			s.token = ""
		}
		s.mu.Unlock()
		return "", core.ErrTokenNotFound
	}

	return token, nil
}

func (s *Storage) SaveToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.storedAt = time.Now()
	atomic.AddInt64(&s.saves, 1)
	return nil
}

func (s *Storage) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	atomic.AddInt64(&s.clears, 1)
	return nil
}

func (s *Storage) Stats() core.StorageStats {
	return core.StorageStats{
		Loads:  atomic.LoadInt64(&s.loads),
		Misses: atomic.LoadInt64(&s.misses),
		Saves:  atomic.LoadInt64(&s.saves),
		Clears: atomic.LoadInt64(&s.clears),
	}
}
