// Package memory provides in-process implementations of the domain
// repositories for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
)

// DocumentStore keeps documents in a map. Every Get and Put copies the
// document so callers never share memory with the store.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*domain.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[uuid.UUID]*domain.Document)}
}

func (s *DocumentStore) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory.DocumentStore.Get: %w", err)
	}

	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if ok {
		return doc.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have created it between the locks.
	if doc, ok = s.docs[id]; !ok {
		doc = domain.NewDocument(id)
		s.docs[id] = doc
	}
	return doc.Clone(), nil
}

func (s *DocumentStore) Put(ctx context.Context, id uuid.UUID, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory.DocumentStore.Put: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("memory.DocumentStore.Put: nil document: %w", domain.ErrPrecondition)
	}

	stored := doc.Clone()
	stored.ID = id
	stored.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.docs[id] = stored
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
