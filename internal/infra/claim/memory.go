package claim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
)

type entry struct {
	token   string
	expires time.Time
}

// MemoryStore is an in-process ClaimStore for single instance deployments.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]entry
	now    func() time.Time
}

// NewMemoryStore constructs an empty claim store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]entry), now: time.Now}
}

// Acquire grants the claim when it is free or expired.
func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if cur, ok := s.claims[key]; ok && now.Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.claims[key] = entry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// Release drops the claim if token still owns it.
func (s *MemoryStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.claims[key]; ok && cur.token == token {
		delete(s.claims, key)
	}
	return nil
}

var _ evaluation.ClaimStore = (*MemoryStore)(nil)
