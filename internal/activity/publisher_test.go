package activity_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/activity"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/store/memory"
)

// --- mock broadcaster ---

type published struct {
	channel string
	payload []byte
}

type mockBroadcaster struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *mockBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, published{channel: channel, payload: payload})
	return nil
}

func record(threadID string) *domain.ActivityRecord {
	return &domain.ActivityRecord{
		ID:         uuid.New(),
		ThreadID:   threadID,
		DocumentID: uuid.New(),
		Summary:    "Added witness Bob Kim",
		Timestamp:  time.Now().UTC(),
	}
}

func TestPublisher_EmitStoresAndBroadcasts(t *testing.T) {
	t.Parallel()

	repo := memory.NewActivityRepo()
	b := &mockBroadcaster{}
	p := activity.NewPublisher(repo, b)

	rec := record("thread-1")
	require.NoError(t, p.Emit(t.Context(), rec))

	recs, err := p.List(t.Context(), "thread-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)

	require.Len(t, b.sent, 1)
	assert.Equal(t, "thread:thread-1", b.sent[0].channel)

	var ev activity.Event
	require.NoError(t, json.Unmarshal(b.sent[0].payload, &ev))
	assert.Equal(t, activity.KindActivity, ev.Kind)
	assert.Equal(t, rec.Summary, ev.Activity.Summary)
}

func TestPublisher_BroadcastFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	repo := memory.NewActivityRepo()
	p := activity.NewPublisher(repo, &mockBroadcaster{err: errors.New("redis down")})

	require.NoError(t, p.Emit(t.Context(), record("thread-1")))
	recs, err := p.List(t.Context(), "thread-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPublisher_RejectsRecordWithoutThread(t *testing.T) {
	t.Parallel()

	p := activity.NewPublisher(memory.NewActivityRepo(), nil)
	require.ErrorIs(t, p.Emit(t.Context(), record("")), domain.ErrPrecondition)
	require.ErrorIs(t, p.Emit(t.Context(), nil), domain.ErrPrecondition)
}
