package memory

import (
	"context"
	"sync"

	"github.com/gosuda/attorney/internal/domain"
)

type ActivityRepo struct {
	mu      sync.RWMutex
	records map[string][]*domain.ActivityRecord
}

func NewActivityRepo() *ActivityRepo {
	return &ActivityRepo{records: make(map[string][]*domain.ActivityRecord)}
}

func (r *ActivityRepo) Append(_ context.Context, rec *domain.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ThreadID] = append(r.records[rec.ThreadID], rec)
	return nil
}

func (r *ActivityRepo) ListByThread(_ context.Context, threadID string, limit, offset int) ([]*domain.ActivityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.records[threadID]
	if offset >= len(all) {
		return []*domain.ActivityRecord{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*domain.ActivityRecord, end-offset)
	copy(out, all[offset:end])
	return out, nil
}
