package pizzeriaserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	ordersapp "github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	apierrors "github.com/Apurer/pizzeria-api/internal/shared/errors"
)

var orderResponder = apierrors.NewChainedResponder("", orderProblem)

// orderProblem maps order service failures to problem responses.
func orderProblem(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ordersapp.ErrValidationFailed):
		return apierrors.NewValidationProblem(err.Error(), domain.FieldErrors(err)), true
	case errors.Is(err, ordersapp.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrIdempotencyConflict):
		return apierrors.ErrIdempotencyConflict.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrInvalidTransition):
		return apierrors.ErrInvalidTransition.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrPersistenceFailed):
		return apierrors.ErrServiceUnavailable.WithDetail("order storage is temporarily unavailable"), true
	default:
		return apierrors.ProblemDetail{}, false
	}
}

func respondOrderError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ordersapp.ErrPersistenceFailed) {
		_ = c.Error(err)
	}
	orderResponder.RespondError(c, err)
}

func respondBadRequest(c *gin.Context, err error) {
	apierrors.Respond(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
}
