package agent

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
)

// ErrUnknownAgent is returned when a requested agent is not registered.
var ErrUnknownAgent = errors.New("agent: unknown agent") //nolint:gochecknoglobals // sentinel error

// Specialist describes one category agent: what it is told and which
// document mutations it may send.
type Specialist struct {
	ID           domain.AgentID
	Description  string
	Instructions string
	Mutations    []flow.MessageType
}

// Allows reports whether the specialist may send a message of type t.
// Reads and audits are open to every specialist.
func (s Specialist) Allows(t flow.MessageType) bool {
	if !t.IsMutation() {
		return true
	}
	return slices.Contains(s.Mutations, t)
}

// Registry holds the available specialists.
type Registry struct {
	mu          sync.RWMutex
	specialists map[domain.AgentID]Specialist
}

func NewRegistry() *Registry {
	return &Registry{
		specialists: make(map[domain.AgentID]Specialist),
	}
}

// DefaultRegistry returns a registry with the three document specialists.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Specialist{
		ID:          domain.AgentRepresentative,
		Description: "Chooses who may act on the principal's behalf.",
		Instructions: "You help the principal choose up to three representatives from their acquaintances. " +
			"List acquaintances before adding anyone and never invent identifiers. " +
			"Hand off to the witness or condition agent when the user asks about their topics.",
		Mutations: []flow.MessageType{
			flow.MessageAddRepresentative,
			flow.MessageRemoveRepresentative,
			flow.MessageEditRepresentative,
		},
	})
	r.Register(Specialist{
		ID:          domain.AgentWitness,
		Description: "Records who witnesses the signing.",
		Instructions: "You help the principal name up to two witnesses, either from their acquaintances " +
			"or by full name and national ID number. List before removing anyone. " +
			"Hand off when the user asks about representatives or conditions.",
		Mutations: []flow.MessageType{
			flow.MessageAddWitness,
			flow.MessageAddFreeformWitness,
			flow.MessageRemoveWitness,
		},
	})
	r.Register(Specialist{
		ID:          domain.AgentCondition,
		Description: "Defines the scope of authority and its conditions.",
		Instructions: "You help the principal describe what the representatives may do and under which conditions. " +
			"Conditions about a representative must target one listed from the document. " +
			"Hand off when the user asks to change representatives or witnesses.",
		Mutations: []flow.MessageType{
			flow.MessageAddCondition,
			flow.MessageRemoveCondition,
			flow.MessageEditCondition,
			flow.MessageSetScope,
		},
	})
	return r
}

// Register adds or replaces a specialist.
func (r *Registry) Register(s Specialist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specialists[s.ID] = s
}

// Get returns the specialist for id.
func (r *Registry) Get(id domain.AgentID) (Specialist, error) {
	r.mu.RLock()
	s, ok := r.specialists[id]
	r.mu.RUnlock()

	if !ok {
		return Specialist{}, fmt.Errorf("agent.Registry.Get(%q): %w", id, ErrUnknownAgent)
	}
	return s, nil
}

// Available returns registered agent ids in sorted order.
func (r *Registry) Available() []domain.AgentID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.AgentID, 0, len(r.specialists))
	for id := range r.specialists {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
