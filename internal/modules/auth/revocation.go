package auth

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revocations remembers signed-out token ids until their tokens expire.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations keeps revocations in process memory.
func NewMemoryRevocations() Revocations {
	return &memoryRevocations{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = until
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[tokenID]
	return ok && exp.After(m.now()), nil
}

type redisRevocations struct{ client *redis.Client }

// NewRedisRevocations shares revocations between instances through Redis
// keys that expire with the token.
func NewRedisRevocations(client *redis.Client) Revocations {
	return &redisRevocations{client: client}
}

func revocationKey(tokenID string) string { return "auth:revoked:" + tokenID }

func (r *redisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revocationKey(tokenID), 1, ttl).Err()
}

func (r *redisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
