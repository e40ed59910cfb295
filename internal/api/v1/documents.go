package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/flow"
	"github.com/gosuda/attorney/internal/server/middleware"
)

type GetDocumentInput struct {
	ID uuid.UUID `path:"id" doc:"Document ID"`
}

type GetDocumentOutput struct {
	Body *domain.Document
}

type ValidateDocumentInput struct {
	ID       uuid.UUID `path:"id" doc:"Document ID"`
	ThreadID string    `query:"threadId" doc:"Thread that receives the activity record"`
}

type ValidateDocumentOutput struct {
	Body *domain.AuditResult
}

type SendMessageInput struct {
	ID      uuid.UUID `path:"id" doc:"Document ID"`
	RawBody []byte    `doc:"Request envelope with messageType and requestId"`
}

type SendMessageOutput struct {
	Status int
	Body   *flow.Response
}

// scoped stamps the caller on req and checks any thread it names.
func scoped(ctx context.Context, threads ThreadLookup, req flow.Request, documentID uuid.UUID) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return huma.Error401Unauthorized("missing user context")
	}
	if err := Scope(ctx, threads, req, documentID, userID); err != nil {
		return operationError(err, "request rejected")
	}
	return nil
}

// RegisterDocumentRoutes wires the document endpoints. threads checks the
// threadId a request names.
func RegisterDocumentRoutes(api huma.API, requester Requester, threads ThreadLookup) {
	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get a document, creating it on first access",
		Tags:        []string{"Documents"},
	}, func(ctx context.Context, input *GetDocumentInput) (*GetDocumentOutput, error) {
		req := &flow.FetchDocument{}
		if err := scoped(ctx, threads, req, input.ID); err != nil {
			return nil, err
		}
		resp, err := requester.Request(ctx, req)
		if err != nil {
			return nil, operationError(err, "failed to fetch document")
		}
		if err := resp.Err(); err != nil {
			return nil, operationError(err, "failed to fetch document")
		}
		return &GetDocumentOutput{Body: resp.Document}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-document",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/validate",
		Summary:     "Audit a document",
		Tags:        []string{"Documents"},
	}, func(ctx context.Context, input *ValidateDocumentInput) (*ValidateDocumentOutput, error) {
		req := &flow.ValidateDocument{Header: flow.Header{ThreadID: input.ThreadID}}
		if err := scoped(ctx, threads, req, input.ID); err != nil {
			return nil, err
		}
		resp, err := requester.Request(ctx, req)
		if err != nil {
			return nil, operationError(err, "failed to validate document")
		}
		if err := resp.Err(); err != nil {
			return nil, operationError(err, "failed to validate document")
		}
		return &ValidateDocumentOutput{Body: resp.AuditResult}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-document-message",
		Method:        http.MethodPost,
		Path:          "/documents/{id}/messages",
		Summary:       "Send a request envelope and wait for its correlated response",
		Description:   "Operation failures are reported inside the response envelope. Unknown message types are ignored. A threadId must name one of the caller's threads bound to this document.",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusOK,
	}, func(ctx context.Context, input *SendMessageInput) (*SendMessageOutput, error) {
		req, err := flow.DecodeRequest(input.RawBody)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid envelope", err)
		}
		if u, ok := req.(*flow.UnknownRequest); ok {
			log.Warn().Str("message_type", string(u.MessageType)).Str("request_id", u.RequestID).
				Msg("api: ignoring unknown message type")
			return &SendMessageOutput{Status: http.StatusAccepted}, nil
		}

		if err := scoped(ctx, threads, req, input.ID); err != nil {
			return nil, err
		}

		resp, err := requester.Request(ctx, req)
		if err != nil {
			return nil, operationError(err, "request was not answered")
		}
		return &SendMessageOutput{Status: http.StatusOK, Body: resp}, nil
	})
}
