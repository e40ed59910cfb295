package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/gosuda/attorney/internal/domain"
)

// DefaultSessionTTL is how long an idle conversation keeps its listed ids.
const DefaultSessionTTL = 24 * time.Hour

// ThreadCoordinator is a Coordinator that also resolves thread bindings.
// *handoff.Coordinator implements it.
type ThreadCoordinator interface {
	Coordinator
	Binding(ctx context.Context, threadID string) (*domain.ThreadBinding, error)
}

// Sessions keeps one Session per conversation thread, so ids listed in one
// turn stay usable in the next. Sessions idle for longer than the TTL are
// dropped and start over with nothing resolved.
type Sessions struct {
	registry  *Registry
	requester Requester
	directory domain.AcquaintanceDirectory
	coord     ThreadCoordinator

	mu    sync.Mutex
	cache *cache.Cache
}

func NewSessions(
	registry *Registry,
	requester Requester,
	directory domain.AcquaintanceDirectory,
	coord ThreadCoordinator,
	ttl time.Duration,
) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		registry:  registry,
		requester: requester,
		directory: directory,
		coord:     coord,
		cache:     cache.New(ttl, 2*ttl),
	}
}

// Get returns the session of threadID, built from its binding on first use.
// Threads of other users look missing.
func (s *Sessions) Get(ctx context.Context, threadID string, userID uuid.UUID) (*Session, error) {
	b, err := s.coord.Binding(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("agent.Sessions.Get: %w", err)
	}
	if b.UserID != userID {
		return nil, fmt.Errorf("agent.Sessions.Get(%s): %w", threadID, domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.cached(threadID)
	if !ok {
		sess = NewSession(b, s.registry, s.requester, s.directory, s.coord)
	}
	// Every use pushes the expiry out again.
	s.cache.Set(threadID, sess, cache.DefaultExpiration)
	return sess, nil
}

func (s *Sessions) cached(threadID string) (*Session, bool) {
	v, found := s.cache.Get(threadID)
	if !found {
		return nil, false
	}
	sess, ok := v.(*Session)
	return sess, ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.cache.ItemCount()
}
