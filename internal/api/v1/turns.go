package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/agent"
	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/handoff"
	"github.com/gosuda/attorney/internal/server/middleware"
)

type TurnMessageInput struct {
	ThreadID string         `path:"threadID" doc:"Thread ID"`
	Agent    domain.AgentID `path:"agent" enum:"representative_agent,witness_agent,condition_agent" doc:"Agent taking the turn"`
	RawBody  []byte         `doc:"Request envelope with messageType and requestId"`
}

type TurnMessageOutput struct {
	Status int
	Body   *flow.Response
}

type ListingInput struct {
	ThreadID string         `path:"threadID" doc:"Thread ID"`
	Agent    domain.AgentID `path:"agent" enum:"representative_agent,witness_agent,condition_agent" doc:"Agent taking the turn"`
	Category string         `path:"category" enum:"acquaintances,representatives,witnesses,conditions" doc:"What to list"`
}

// Listing is one category of identifiers shown to the conversation.
type Listing struct {
	Category string `json:"category"`
	Items    any    `json:"items"`
}

type ListingOutput struct {
	Body *Listing
}

type TurnHandoffInput struct {
	ThreadID string         `path:"threadID" doc:"Thread ID"`
	Agent    domain.AgentID `path:"agent" enum:"representative_agent,witness_agent,condition_agent" doc:"Agent handing off"`
	Body     struct {
		Target  domain.AgentID `json:"target" doc:"Agent to hand the thread to"`
		Message string         `json:"message" doc:"The user's original message, replayed to the new owner"`
	}
}

type TurnHandoffOutput struct {
	Body *handoff.Transfer
}

// turnError maps agent and handoff failures onto HTTP problems.
func turnError(err error, msg string) huma.StatusError {
	switch {
	case errors.Is(err, agent.ErrUnknownAgent):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, agent.ErrOutOfScope):
		return huma.Error403Forbidden(msg, err)
	case errors.Is(err, agent.ErrUnresolvedID):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, handoff.ErrNotOwner), errors.Is(err, handoff.ErrSelfHandoff), errors.Is(err, agent.ErrTurnEnded):
		return huma.Error409Conflict(msg, err)
	}
	return operationError(err, msg)
}

func beginTurn(ctx context.Context, sessions *agent.Sessions, threadID string, id domain.AgentID) (*agent.Turn, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing user context")
	}
	sess, err := sessions.Get(ctx, threadID, userID)
	if err != nil {
		return nil, operationError(err, "thread not found")
	}
	turn, err := sess.BeginTurn(ctx, id)
	if err != nil {
		return nil, turnError(err, "cannot take the turn")
	}
	return turn, nil
}

// RegisterTurnRoutes wires the endpoints an agent uses while it owns a
// thread. The thread binding decides which document every request touches.
func RegisterTurnRoutes(api huma.API, sessions *agent.Sessions) {
	huma.Register(api, huma.Operation{
		OperationID:   "send-turn-message",
		Method:        http.MethodPost,
		Path:          "/threads/{threadID}/agents/{agent}/messages",
		Summary:       "Send a request envelope as the agent owning the thread",
		Description:   "Mutations outside the agent's category are forbidden, and every identifier must come from a listing of its category earlier in the conversation.",
		Tags:          []string{"Agents"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *TurnMessageInput) (*TurnMessageOutput, error) {
		req, err := flow.DecodeRequest(input.RawBody)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid envelope", err)
		}
		if u, ok := req.(*flow.UnknownRequest); ok {
			log.Warn().Str("message_type", string(u.MessageType)).Str("request_id", u.RequestID).
				Msg("api: ignoring unknown message type")
			return &TurnMessageOutput{Status: http.StatusAccepted}, nil
		}

		turn, err := beginTurn(ctx, sessions, input.ThreadID, input.Agent)
		if err != nil {
			return nil, err
		}
		head := req.Head()
		if head.DocumentID != uuid.Nil && head.DocumentID != turn.DocumentID() {
			return nil, huma.Error400BadRequest("envelope documentId is not the thread's document")
		}
		if head.ThreadID != "" && head.ThreadID != turn.ThreadID() {
			return nil, huma.Error400BadRequest("envelope threadId does not match the path")
		}

		resp, err := turn.Dispatch(ctx, req)
		if err != nil {
			return nil, turnError(err, "request failed")
		}
		return &TurnMessageOutput{Status: http.StatusOK, Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-turn-category",
		Method:      http.MethodGet,
		Path:        "/threads/{threadID}/agents/{agent}/listings/{category}",
		Summary:     "List one category and make its identifiers usable in the conversation",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *ListingInput) (*ListingOutput, error) {
		turn, err := beginTurn(ctx, sessions, input.ThreadID, input.Agent)
		if err != nil {
			return nil, err
		}

		var items any
		switch input.Category {
		case "acquaintances":
			items, err = turn.ListAcquaintances(ctx)
		case "representatives":
			items, err = turn.ListRepresentatives(ctx)
		case "witnesses":
			items, err = turn.ListWitnesses(ctx)
		case "conditions":
			items, err = turn.ListConditions(ctx)
		default:
			return nil, huma.Error400BadRequest("unknown category " + input.Category)
		}
		if err != nil {
			return nil, turnError(err, "listing failed")
		}
		return &ListingOutput{Body: &Listing{Category: input.Category, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "turn-handoff",
		Method:      http.MethodPost,
		Path:        "/threads/{threadID}/agents/{agent}/handoff",
		Summary:     "End the agent's turn by passing the thread on",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *TurnHandoffInput) (*TurnHandoffOutput, error) {
		turn, err := beginTurn(ctx, sessions, input.ThreadID, input.Agent)
		if err != nil {
			return nil, err
		}
		tr, err := turn.Handoff(ctx, input.Body.Target, input.Body.Message)
		if err != nil {
			return nil, turnError(err, "handoff failed")
		}
		return &TurnHandoffOutput{Body: tr}, nil
	})
}
