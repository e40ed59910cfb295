package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/attorney/internal/domain"
)

// OwnershipStore keeps the current owner agent of each thread in Redis.
type OwnershipStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOwnershipStore creates a store. A zero ttl keeps keys forever.
func NewOwnershipStore(client *redis.Client, ttl time.Duration) *OwnershipStore {
	return &OwnershipStore{client: client, ttl: ttl}
}

// OwnerKey returns the Redis key holding the owner of a thread.
func OwnerKey(threadID string) string {
	return "owner:" + threadID
}

func (s *OwnershipStore) Owner(ctx context.Context, threadID string) (domain.AgentID, bool, error) {
	v, err := s.client.Get(ctx, OwnerKey(threadID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis.OwnershipStore.Owner: %w", err)
	}

	agent, err := domain.ParseAgentID(v)
	if err != nil {
		return "", false, fmt.Errorf("redis.OwnershipStore.Owner: %w", err)
	}
	return agent, true, nil
}

func (s *OwnershipStore) SetOwner(ctx context.Context, threadID string, agent domain.AgentID) error {
	if err := s.client.Set(ctx, OwnerKey(threadID), string(agent), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis.OwnershipStore.SetOwner: %w", err)
	}
	return nil
}
