package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/handoff"
	"github.com/gosuda/attorney/internal/server/middleware"
)

type OpenThreadInput struct {
	Body struct {
		ThreadID     string         `json:"threadId" minLength:"1" maxLength:"200" doc:"Conversation thread ID"`
		DocumentID   uuid.UUID      `json:"documentId" doc:"Document the thread works on"`
		InitialAgent domain.AgentID `json:"initialAgent" enum:"representative_agent,witness_agent,condition_agent" doc:"Agent that owns the thread first"`
	}
}

type ThreadView struct {
	Binding *domain.ThreadBinding `json:"binding"`
	Owner   domain.AgentID        `json:"owner"`
}

type OpenThreadOutput struct {
	Body *ThreadView
}

type GetThreadInput struct {
	ThreadID string `path:"threadID" doc:"Thread ID"`
}

type GetThreadOutput struct {
	Body *ThreadView
}

type HandoffInput struct {
	ThreadID string `path:"threadID" doc:"Thread ID"`
	Body     struct {
		From    domain.AgentID `json:"from" doc:"Agent that currently owns the thread"`
		Target  domain.AgentID `json:"target" doc:"Agent to hand the thread to"`
		Message string         `json:"message" doc:"The user's original message, replayed to the new owner"`
	}
}

type HandoffOutput struct {
	Body *handoff.Transfer
}

type ListActivityInput struct {
	ThreadID string `path:"threadID" doc:"Thread ID"`
	Limit    int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset   int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListActivityOutput struct {
	Body []*domain.ActivityRecord
}

// ownedBinding returns the thread's binding if it belongs to the caller.
// Threads of other users look missing.
func ownedBinding(ctx context.Context, threads ThreadService, threadID string) (*domain.ThreadBinding, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing user context")
	}
	b, err := threads.Binding(ctx, threadID)
	if err != nil {
		return nil, operationError(err, "thread not found")
	}
	if b.UserID != userID {
		return nil, huma.Error404NotFound("thread not found")
	}
	return b, nil
}

func RegisterThreadRoutes(api huma.API, threads ThreadService, activity ActivityLog) {
	huma.Register(api, huma.Operation{
		OperationID:   "open-thread",
		Method:        http.MethodPost,
		Path:          "/threads",
		Summary:       "Bind a conversation thread to a document",
		Tags:          []string{"Threads"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *OpenThreadInput) (*OpenThreadOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		b, err := domain.NewThreadBinding(input.Body.ThreadID, input.Body.DocumentID, userID, input.Body.InitialAgent)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		if err := threads.Open(ctx, b); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("thread is bound to another document")
			}
			return nil, operationError(err, "failed to open thread")
		}

		owner, err := threads.Owner(ctx, b.ThreadID)
		if err != nil {
			return nil, operationError(err, "failed to read thread owner")
		}
		return &OpenThreadOutput{Body: &ThreadView{Binding: b, Owner: owner}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-thread",
		Method:      http.MethodGet,
		Path:        "/threads/{threadID}",
		Summary:     "Get a thread's binding and current owner",
		Tags:        []string{"Threads"},
	}, func(ctx context.Context, input *GetThreadInput) (*GetThreadOutput, error) {
		b, err := ownedBinding(ctx, threads, input.ThreadID)
		if err != nil {
			return nil, err
		}
		owner, err := threads.Owner(ctx, b.ThreadID)
		if err != nil {
			return nil, operationError(err, "failed to read thread owner")
		}
		return &GetThreadOutput{Body: &ThreadView{Binding: b, Owner: owner}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "handoff-thread",
		Method:      http.MethodPost,
		Path:        "/threads/{threadID}/handoff",
		Summary:     "Pass the thread to another agent",
		Tags:        []string{"Threads"},
	}, func(ctx context.Context, input *HandoffInput) (*HandoffOutput, error) {
		if _, err := ownedBinding(ctx, threads, input.ThreadID); err != nil {
			return nil, err
		}
		t, err := threads.Handoff(ctx, input.ThreadID, input.Body.From, handoff.Request{
			Target:  input.Body.Target,
			Message: input.Body.Message,
		})
		if err != nil {
			if errors.Is(err, handoff.ErrNotOwner) {
				return nil, huma.Error409Conflict("agent does not own the thread")
			}
			return nil, operationError(err, "handoff failed")
		}
		return &HandoffOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-thread-activity",
		Method:      http.MethodGet,
		Path:        "/threads/{threadID}/activity",
		Summary:     "List a thread's activity records, oldest first",
		Tags:        []string{"Threads"},
	}, func(ctx context.Context, input *ListActivityInput) (*ListActivityOutput, error) {
		if _, err := ownedBinding(ctx, threads, input.ThreadID); err != nil {
			return nil, err
		}
		recs, err := activity.List(ctx, input.ThreadID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list activity", err)
		}
		return &ListActivityOutput{Body: recs}, nil
	})
}
