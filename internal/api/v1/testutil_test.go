package v1_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/activity"
	"github.com/gosuda/attorney/internal/agent"
	"github.com/gosuda/attorney/internal/audit"
	"github.com/gosuda/attorney/internal/document"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
	"github.com/gosuda/attorney/internal/server/middleware"
	"github.com/gosuda/attorney/internal/store/memory"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUserID(context.Background(), userID)
}

// ---------------------------------------------------------------------------
// Mock Requester
// ---------------------------------------------------------------------------

type mockRequester struct {
	requestFunc func(ctx context.Context, req flow.Request) (*flow.Response, error)
}

func (m *mockRequester) Request(ctx context.Context, req flow.Request) (*flow.Response, error) {
	return m.requestFunc(ctx, req)
}

// ---------------------------------------------------------------------------
// In-memory stack
// ---------------------------------------------------------------------------

type stack struct {
	manager  *flow.Manager
	threads  *handoff.Coordinator
	activity *activity.Publisher
	sessions *agent.Sessions
	dir      *memory.Directory
	userID   uuid.UUID
	contacts []domain.Acquaintance
}

func newStack(t *testing.T) *stack {
	t.Helper()

	userID := uuid.New()
	contacts := []domain.Acquaintance{
		{ID: uuid.New(), UserID: userID, FullName: "Ann Lee", NationalIDNumber: "A-100", Address: "1 Elm", Relationship: "sister"},
		{ID: uuid.New(), UserID: userID, FullName: "Bob Kim", NationalIDNumber: "B-200", Address: "2 Oak"},
	}
	dir := memory.NewDirectory(contacts...)
	svc := document.NewService(memory.NewDocumentStore(), dir)
	pub := activity.NewPublisher(memory.NewActivityRepo(), nil)

	m := flow.NewManager(flow.NewProcessor(svc, audit.NewEngine(), flow.WithActivity(pub)))
	t.Cleanup(m.Shutdown)

	threads := handoff.NewCoordinator(memory.NewThreadRepo(), handoff.NewMemoryOwnership())
	return &stack{
		manager:  m,
		threads:  threads,
		activity: pub,
		sessions: agent.NewSessions(agent.DefaultRegistry(), m, dir, threads, time.Hour),
		dir:      dir,
		userID:   userID,
		contacts: contacts,
	}
}

// open binds threadID to docID for userID with the representative agent first.
func (s *stack) open(t *testing.T, threadID string, docID, userID uuid.UUID) {
	t.Helper()
	b, err := domain.NewThreadBinding(threadID, docID, userID, domain.AgentRepresentative)
	require.NoError(t, err)
	require.NoError(t, s.threads.Open(t.Context(), b))
}
