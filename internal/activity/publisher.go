// Package activity records what agents did on a conversation thread and
// broadcasts each record to the thread's subscribers.
package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/store/redis"
)

// Broadcaster publishes a payload on a named channel.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Event is the envelope sent on a thread channel.
type Event struct {
	Kind     string                 `json:"kind"`
	Activity *domain.ActivityRecord `json:"activity,omitempty"`
}

const KindActivity = "activity"

// Publisher persists activity records and fans them out. A nil Broadcaster
// disables fan-out.
type Publisher struct {
	repo        domain.ActivityRepository
	broadcaster Broadcaster
}

func NewPublisher(repo domain.ActivityRepository, broadcaster Broadcaster) *Publisher {
	return &Publisher{repo: repo, broadcaster: broadcaster}
}

// Emit stores rec and publishes it on the thread channel. A failed
// broadcast is logged; the record is already durable.
func (p *Publisher) Emit(ctx context.Context, rec *domain.ActivityRecord) error {
	if rec == nil || rec.ThreadID == "" {
		return fmt.Errorf("activity.Publisher.Emit: record without thread: %w", domain.ErrPrecondition)
	}
	if err := p.repo.Append(ctx, rec); err != nil {
		return fmt.Errorf("activity.Publisher.Emit: %w", err)
	}
	if p.broadcaster == nil {
		return nil
	}

	payload, err := json.Marshal(Event{Kind: KindActivity, Activity: rec})
	if err != nil {
		return fmt.Errorf("activity.Publisher.Emit: marshal: %w", err)
	}
	if err := p.broadcaster.Publish(ctx, redis.ThreadChannel(rec.ThreadID), payload); err != nil {
		log.Warn().Err(err).Str("thread_id", rec.ThreadID).Msg("activity: broadcast failed")
	}
	return nil
}

// List returns a page of a thread's records, oldest first.
func (p *Publisher) List(ctx context.Context, threadID string, limit, offset int) ([]*domain.ActivityRecord, error) {
	recs, err := p.repo.ListByThread(ctx, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("activity.Publisher.List: %w", err)
	}
	return recs, nil
}
