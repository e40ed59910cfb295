package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
)

// Requester sends a request through the correlation layer and waits for
// its response. *flow.Manager satisfies this interface.
type Requester interface {
	Request(ctx context.Context, req flow.Request) (*flow.Response, error)
}

// ThreadService opens threads and moves their ownership.
// *handoff.Coordinator satisfies this interface.
type ThreadService interface {
	Open(ctx context.Context, b *domain.ThreadBinding) error
	Binding(ctx context.Context, threadID string) (*domain.ThreadBinding, error)
	Owner(ctx context.Context, threadID string) (domain.AgentID, error)
	Handoff(ctx context.Context, threadID string, from domain.AgentID, req handoff.Request) (*handoff.Transfer, error)
}

// ActivityLog lists a thread's activity records.
// *activity.Publisher satisfies this interface.
type ActivityLog interface {
	List(ctx context.Context, threadID string, limit, offset int) ([]*domain.ActivityRecord, error)
}

// BindUser makes acquaintance lookups in req run as userID, whatever the
// client put in the envelope.
func BindUser(req flow.Request, userID uuid.UUID) {
	switch r := req.(type) {
	case *flow.AddRepresentative:
		r.UserID = userID
	case *flow.AddWitness:
		r.UserID = userID
	}
}
