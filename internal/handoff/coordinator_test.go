package handoff_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/handoff"
	"github.com/gosuda/attorney/internal/metrics"
	"github.com/gosuda/attorney/internal/store/memory"
)

// --- mock broadcaster ---

type mockBroadcaster struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *mockBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

// --- mock failing ownership ---

type brokenOwnership struct{}

func (brokenOwnership) Owner(context.Context, string) (domain.AgentID, bool, error) {
	return "", false, errors.New("redis down")
}

func (brokenOwnership) SetOwner(context.Context, string, domain.AgentID) error {
	return errors.New("redis down")
}

func openThread(t *testing.T, c *handoff.Coordinator, initial domain.AgentID) *domain.ThreadBinding {
	t.Helper()
	b, err := domain.NewThreadBinding("thread-"+uuid.NewString(), uuid.New(), uuid.New(), initial)
	require.NoError(t, err)
	require.NoError(t, c.Open(t.Context(), b))
	return b
}

func TestCoordinator_OpenSetsInitialOwner(t *testing.T) {
	t.Parallel()

	c := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership())
	b := openThread(t, c, domain.AgentWitness)

	owner, err := c.Owner(t.Context(), b.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentWitness, owner)

	_, err = c.Owner(t.Context(), "no-such-thread")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordinator_ReopenKeepsOwner(t *testing.T) {
	t.Parallel()

	c := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership())
	b := openThread(t, c, domain.AgentRepresentative)

	_, err := c.Handoff(t.Context(), b.ThreadID, domain.AgentRepresentative, handoff.Request{Target: domain.AgentCondition})
	require.NoError(t, err)
	require.NoError(t, c.Open(t.Context(), b))

	owner, err := c.Owner(t.Context(), b.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentCondition, owner)

	other := *b
	other.DocumentID = uuid.New()
	require.ErrorIs(t, c.Open(t.Context(), &other), domain.ErrConflict)
}

func TestCoordinator_Handoff(t *testing.T) {
	t.Parallel()

	events := &mockBroadcaster{}
	m := metrics.New(prometheus.NewRegistry())
	c := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership(),
		handoff.WithBroadcaster(events), handoff.WithMetrics(m))
	b := openThread(t, c, domain.AgentRepresentative)

	tr, err := c.Handoff(t.Context(), b.ThreadID, domain.AgentRepresentative, handoff.Request{
		Target:  domain.AgentWitness,
		Message: "my brother Bob should witness",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRepresentative, tr.From)
	assert.Equal(t, domain.AgentWitness, tr.To)
	assert.Equal(t, b.DocumentID, tr.DocumentID, "document id comes from the binding")
	assert.Equal(t, "my brother Bob should witness", tr.SeedMessage)

	owner, err := c.Owner(t.Context(), b.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentWitness, owner)

	require.Len(t, events.channels, 1)
	assert.Equal(t, "thread:"+b.ThreadID, events.channels[0])
	var ev handoff.Event
	require.NoError(t, json.Unmarshal(events.payloads[0], &ev))
	assert.Equal(t, handoff.KindHandoff, ev.Kind)
	assert.Equal(t, domain.AgentWitness, ev.Handoff.To)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Handoffs.WithLabelValues("representative_agent", "witness_agent")), 0)

	// Handing back is an ordinary handoff.
	_, err = c.Handoff(t.Context(), b.ThreadID, domain.AgentWitness, handoff.Request{Target: domain.AgentRepresentative})
	require.NoError(t, err)
	owner, err = c.Owner(t.Context(), b.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRepresentative, owner)
}

func TestCoordinator_PayloadDocumentIDIsIgnored(t *testing.T) {
	t.Parallel()

	c := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership())
	b := openThread(t, c, domain.AgentCondition)

	var req handoff.Request
	payload := `{"target":"witness_agent","message":"add witnesses","documentId":"` + uuid.NewString() + `"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	tr, err := c.Handoff(t.Context(), b.ThreadID, domain.AgentCondition, req)
	require.NoError(t, err)
	assert.Equal(t, b.DocumentID, tr.DocumentID)
}

func TestCoordinator_HandoffRejections(t *testing.T) {
	t.Parallel()

	c := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership())
	b := openThread(t, c, domain.AgentRepresentative)

	tests := []struct {
		name    string
		from    domain.AgentID
		target  domain.AgentID
		wantErr []error
	}{
		{"not the owner", domain.AgentWitness, domain.AgentCondition, []error{handoff.ErrNotOwner, domain.ErrPrecondition}},
		{"to itself", domain.AgentRepresentative, domain.AgentRepresentative, []error{handoff.ErrSelfHandoff, domain.ErrPrecondition}},
		{"unknown target", domain.AgentRepresentative, "lawyer_agent", []error{domain.ErrProtocol}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Handoff(t.Context(), b.ThreadID, tt.from, handoff.Request{Target: tt.target})
			for _, want := range tt.wantErr {
				require.ErrorIs(t, err, want)
			}
		})
	}

	_, err := c.Handoff(t.Context(), "missing", domain.AgentRepresentative, handoff.Request{Target: domain.AgentWitness})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordinator_OwnershipStoreFailure(t *testing.T) {
	t.Parallel()

	threads := memory.NewThreadRepo()
	b, err := domain.NewThreadBinding("thread-1", uuid.New(), uuid.New(), domain.AgentWitness)
	require.NoError(t, err)
	require.NoError(t, threads.Bind(t.Context(), b))

	c := handoff.NewCoordinator(threads, brokenOwnership{})
	_, err = c.Owner(t.Context(), "thread-1")
	require.Error(t, err)
	_, err = c.Handoff(t.Context(), "thread-1", domain.AgentWitness, handoff.Request{Target: domain.AgentCondition})
	require.Error(t, err)
}
