package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gosuda/attorney/internal/domain"
)

type ThreadRepo struct {
	mu      sync.RWMutex
	threads map[string]domain.ThreadBinding
}

func NewThreadRepo() *ThreadRepo {
	return &ThreadRepo{threads: make(map[string]domain.ThreadBinding)}
}

func (r *ThreadRepo) Bind(_ context.Context, b *domain.ThreadBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.threads[b.ThreadID]; ok {
		if existing.DocumentID != b.DocumentID {
			return fmt.Errorf("memory.ThreadRepo.Bind: thread %s: %w", b.ThreadID, domain.ErrConflict)
		}
		return nil
	}
	r.threads[b.ThreadID] = *b
	return nil
}

func (r *ThreadRepo) Get(_ context.Context, threadID string) (*domain.ThreadBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("memory.ThreadRepo.Get: thread %s: %w", threadID, domain.ErrNotFound)
	}
	return &b, nil
}
