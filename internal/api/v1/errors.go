package v1

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/attorney/internal/domain"
)

// operationError maps a domain failure onto an HTTP problem.
func operationError(err error, msg string) huma.StatusError {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, domain.ErrPrecondition):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, domain.ErrProtocol):
		return huma.Error400BadRequest(msg, err)
	case errors.Is(err, domain.ErrTimeout):
		return huma.Error504GatewayTimeout(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}
