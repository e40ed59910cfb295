package handoff

import (
	"context"
	"sync"

	"github.com/gosuda/attorney/internal/domain"
)

// OwnershipStore keeps the current owner agent of each thread.
type OwnershipStore interface {
	Owner(ctx context.Context, threadID string) (domain.AgentID, bool, error)
	SetOwner(ctx context.Context, threadID string, agent domain.AgentID) error
}

// MemoryOwnership is an in-process OwnershipStore.
type MemoryOwnership struct {
	mu     sync.RWMutex
	owners map[string]domain.AgentID
}

func NewMemoryOwnership() *MemoryOwnership {
	return &MemoryOwnership{owners: make(map[string]domain.AgentID)}
}

func (m *MemoryOwnership) Owner(_ context.Context, threadID string) (domain.AgentID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.owners[threadID]
	return agent, ok, nil
}

func (m *MemoryOwnership) SetOwner(_ context.Context, threadID string, agent domain.AgentID) error {
	m.mu.Lock()
	m.owners[threadID] = agent
	m.mu.Unlock()
	return nil
}
