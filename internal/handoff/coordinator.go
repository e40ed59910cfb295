// Package handoff moves ownership of a conversation thread between the
// specialist agents.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/metrics"
	"github.com/gosuda/attorney/internal/store/redis"
)

var (
	ErrNotOwner    = errors.New("handoff: agent does not own the thread")
	ErrSelfHandoff = errors.New("handoff: agent already owns the thread")
)

// Request is what an owning agent sends to pass the thread on. It carries
// no document id; the receiver reads it from the thread binding.
type Request struct {
	Target  domain.AgentID `json:"target"`
	Message string         `json:"message"`
}

// Transfer is the seed the new owner starts from.
type Transfer struct {
	ThreadID    string         `json:"threadId"`
	DocumentID  uuid.UUID      `json:"documentId"`
	From        domain.AgentID `json:"from"`
	To          domain.AgentID `json:"to"`
	SeedMessage string         `json:"seedMessage"`
	At          time.Time      `json:"at"`
}

// Event is published on the thread channel after each handoff.
type Event struct {
	Kind    string    `json:"kind"`
	Handoff *Transfer `json:"handoff"`
}

const KindHandoff = "handoff"

// Broadcaster publishes a payload on a named channel.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Coordinator tracks which agent owns each thread.
type Coordinator struct {
	threads domain.ThreadRepository
	owners  OwnershipStore
	events  Broadcaster
	metrics *metrics.Metrics
	now     func() time.Time

	// mu serializes check-and-set of ownership.
	mu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBroadcaster publishes handoff events.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Coordinator) { c.events = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func NewCoordinator(threads domain.ThreadRepository, owners OwnershipStore, opts ...Option) *Coordinator {
	c := &Coordinator{threads: threads, owners: owners, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open binds a thread to its document and gives it to the initial agent.
// Reopening an identical binding keeps the current owner.
func (c *Coordinator) Open(ctx context.Context, b *domain.ThreadBinding) error {
	if err := c.threads.Bind(ctx, b); err != nil {
		return fmt.Errorf("handoff.Coordinator.Open: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok, err := c.owners.Owner(ctx, b.ThreadID); err != nil {
		return fmt.Errorf("handoff.Coordinator.Open: %w", err)
	} else if ok {
		return nil
	}
	if err := c.owners.SetOwner(ctx, b.ThreadID, b.InitialAgent); err != nil {
		return fmt.Errorf("handoff.Coordinator.Open: %w", err)
	}
	return nil
}

// Binding returns the thread's binding.
func (c *Coordinator) Binding(ctx context.Context, threadID string) (*domain.ThreadBinding, error) {
	b, err := c.threads.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("handoff.Coordinator.Binding: %w", err)
	}
	return b, nil
}

// Owner returns the agent currently owning the thread. Without a stored
// owner the thread belongs to its initial agent.
func (c *Coordinator) Owner(ctx context.Context, threadID string) (domain.AgentID, error) {
	b, err := c.threads.Get(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("handoff.Coordinator.Owner: %w", err)
	}
	owner, err := c.ownerOf(ctx, b)
	if err != nil {
		return "", fmt.Errorf("handoff.Coordinator.Owner: %w", err)
	}
	return owner, nil
}

func (c *Coordinator) ownerOf(ctx context.Context, b *domain.ThreadBinding) (domain.AgentID, error) {
	agent, ok, err := c.owners.Owner(ctx, b.ThreadID)
	if err != nil {
		return "", err
	}
	if !ok {
		return b.InitialAgent, nil
	}
	return agent, nil
}

// Handoff passes the thread from its owner to req.Target. Only the owner
// may hand off; handing back later is an ordinary handoff.
func (c *Coordinator) Handoff(ctx context.Context, threadID string, from domain.AgentID, req Request) (*Transfer, error) {
	if !req.Target.Valid() {
		return nil, fmt.Errorf("handoff.Coordinator.Handoff: target %q: %w", req.Target, domain.ErrProtocol)
	}

	b, err := c.transfer(ctx, threadID, from, req.Target)
	if err != nil {
		return nil, fmt.Errorf("handoff.Coordinator.Handoff: %w", err)
	}

	t := &Transfer{
		ThreadID:    threadID,
		DocumentID:  b.DocumentID,
		From:        from,
		To:          req.Target,
		SeedMessage: req.Message,
		At:          c.now().UTC(),
	}
	c.metrics.CountHandoff(string(from), string(req.Target))
	c.publish(ctx, t)

	log.Info().
		Str("thread_id", threadID).
		Str("from", string(from)).
		Str("to", string(req.Target)).
		Msg("handoff: ownership transferred")
	return t, nil
}

func (c *Coordinator) transfer(ctx context.Context, threadID string, from, to domain.AgentID) (*domain.ThreadBinding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	owner, err := c.ownerOf(ctx, b)
	if err != nil {
		return nil, err
	}
	switch {
	case owner != from:
		return nil, fmt.Errorf("%s (owner %s): %w: %w", from, owner, ErrNotOwner, domain.ErrPrecondition)
	case to == from:
		return nil, fmt.Errorf("%s: %w: %w", from, ErrSelfHandoff, domain.ErrPrecondition)
	}
	if err := c.owners.SetOwner(ctx, threadID, to); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Coordinator) publish(ctx context.Context, t *Transfer) {
	if c.events == nil {
		return
	}
	payload, err := json.Marshal(Event{Kind: KindHandoff, Handoff: t})
	if err != nil {
		log.Error().Err(err).Str("thread_id", t.ThreadID).Msg("handoff: marshal event")
		return
	}
	if err := c.events.Publish(ctx, redis.ThreadChannel(t.ThreadID), payload); err != nil {
		log.Warn().Err(err).Str("thread_id", t.ThreadID).Msg("handoff: publish event failed")
	}
}
