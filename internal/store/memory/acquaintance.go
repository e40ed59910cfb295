package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
)

// Directory is a static acquaintance directory.
type Directory struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]domain.Acquaintance
}

func NewDirectory(entries ...domain.Acquaintance) *Directory {
	d := &Directory{entries: make(map[uuid.UUID][]domain.Acquaintance)}
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

func (d *Directory) Add(a domain.Acquaintance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[a.UserID] = append(d.entries[a.UserID], a)
}

func (d *Directory) ListAcquaintances(_ context.Context, userID uuid.UUID) ([]domain.Acquaintance, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Acquaintance, len(d.entries[userID]))
	copy(out, d.entries[userID])
	return out, nil
}

func (d *Directory) GetAcquaintance(_ context.Context, userID, acquaintanceID uuid.UUID) (*domain.Acquaintance, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, a := range d.entries[userID] {
		if a.ID == acquaintanceID {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("memory.Directory.GetAcquaintance: %s: %w", acquaintanceID, domain.ErrNotFound)
}
