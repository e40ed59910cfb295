package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/server/middleware"
)

type ListAcquaintancesInput struct{}

type ListAcquaintancesOutput struct {
	Body []domain.Acquaintance
}

type GetAcquaintanceInput struct {
	ID uuid.UUID `path:"id" doc:"Acquaintance ID"`
}

type GetAcquaintanceOutput struct {
	Body *domain.Acquaintance
}

func RegisterAcquaintanceRoutes(api huma.API, directory domain.AcquaintanceDirectory) {
	huma.Register(api, huma.Operation{
		OperationID: "list-acquaintances",
		Method:      http.MethodGet,
		Path:        "/acquaintances",
		Summary:     "List the caller's acquaintances",
		Tags:        []string{"Acquaintances"},
	}, func(ctx context.Context, _ *ListAcquaintancesInput) (*ListAcquaintancesOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		list, err := directory.ListAcquaintances(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list acquaintances", err)
		}
		return &ListAcquaintancesOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-acquaintance",
		Method:      http.MethodGet,
		Path:        "/acquaintances/{id}",
		Summary:     "Get one of the caller's acquaintances",
		Tags:        []string{"Acquaintances"},
	}, func(ctx context.Context, input *GetAcquaintanceInput) (*GetAcquaintanceOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		a, err := directory.GetAcquaintance(ctx, userID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("acquaintance not found")
			}
			return nil, huma.Error500InternalServerError("failed to get acquaintance", err)
		}
		return &GetAcquaintanceOutput{Body: a}, nil
	})
}
