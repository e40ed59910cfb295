package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
)

var (
	// ErrTurnEnded is returned for any capability used after the turn handed off.
	ErrTurnEnded = errors.New("agent: turn has ended")
	// ErrOutOfScope is returned when an agent attempts another category's mutation.
	ErrOutOfScope = errors.New("agent: operation outside the agent's category")
	// ErrUnresolvedID is returned for identifiers the conversation never listed.
	ErrUnresolvedID = errors.New("agent: identifier was not obtained from a listing")
)

// Requester sends a request through the correlation layer and waits for
// its response. *flow.Manager implements it.
type Requester interface {
	Request(ctx context.Context, req flow.Request) (*flow.Response, error)
}

// Coordinator tracks and transfers thread ownership. *handoff.Coordinator
// implements it.
type Coordinator interface {
	Owner(ctx context.Context, threadID string) (domain.AgentID, error)
	Handoff(ctx context.Context, threadID string, from domain.AgentID, req handoff.Request) (*handoff.Transfer, error)
}

// category is the kind of listing an identifier was obtained from.
type category int

const (
	categoryAcquaintance category = iota
	categoryRepresentative
	categoryWitness
	categoryCondition
)

func (c category) String() string {
	switch c {
	case categoryAcquaintance:
		return "acquaintance"
	case categoryRepresentative:
		return "representative"
	case categoryWitness:
		return "witness"
	case categoryCondition:
		return "condition"
	}
	return "unknown"
}

// Session is one conversation thread. It remembers the identifiers each
// listing showed, per category, so later mutations can only reference those.
type Session struct {
	binding   *domain.ThreadBinding
	registry  *Registry
	requester Requester
	directory domain.AcquaintanceDirectory
	coord     Coordinator

	mu         sync.Mutex
	resolved   map[category]map[uuid.UUID]struct{}
	conditions map[uuid.UUID]domain.ConditionType
}

func NewSession(
	binding *domain.ThreadBinding,
	registry *Registry,
	requester Requester,
	directory domain.AcquaintanceDirectory,
	coord Coordinator,
) *Session {
	return &Session{
		binding:    binding,
		registry:   registry,
		requester:  requester,
		directory:  directory,
		coord:      coord,
		resolved:   make(map[category]map[uuid.UUID]struct{}),
		conditions: make(map[uuid.UUID]domain.ConditionType),
	}
}

func (s *Session) Binding() *domain.ThreadBinding { return s.binding }

// BeginTurn starts a turn for the agent that currently owns the thread.
func (s *Session) BeginTurn(ctx context.Context, id domain.AgentID) (*Turn, error) {
	specialist, err := s.registry.Get(id)
	if err != nil {
		return nil, fmt.Errorf("agent.Session.BeginTurn: %w", err)
	}
	owner, err := s.coord.Owner(ctx, s.binding.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("agent.Session.BeginTurn: %w", err)
	}
	if owner != id {
		return nil, fmt.Errorf("agent.Session.BeginTurn: %s (owner %s): %w", id, owner, handoff.ErrNotOwner)
	}
	return &Turn{session: s, specialist: specialist}, nil
}

func (s *Session) resolve(c category, ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.resolved[c]
	if !ok {
		set = make(map[uuid.UUID]struct{}, len(ids))
		s.resolved[c] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

func (s *Session) isResolved(c category, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.resolved[c][id]
	return ok
}

// listedConditions resolves the listed condition ids and remembers their
// types for later target checks.
func (s *Session) listedConditions(conds []domain.Condition) {
	ids := make([]uuid.UUID, 0, len(conds))
	s.mu.Lock()
	for _, c := range conds {
		ids = append(ids, c.ID)
		s.conditions[c.ID] = c.Type
	}
	s.mu.Unlock()
	s.resolve(categoryCondition, ids...)
}

func (s *Session) conditionType(id uuid.UUID) domain.ConditionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditions[id]
}
