package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
	"github.com/saveourtool/save-cloud/pkg/domain/errors/runnererrors"
	"github.com/saveourtool/save-cloud/pkg/hook"
	"github.com/saveourtool/save-cloud/pkg/token"
)

// Compose maps domain errors to http errors.
//
//   - missing entities: 404
//   - conflicts and invalid transitions: 409
//   - broken agent tokens: 401
//   - rejected by hooks: 502
//   - container platform failures: 503
//   - others: 500
func Compose(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	if herr := new(echo.HTTPError); errors.As(err, &herr) {
		return herr
	}

	switch {
	case errors.Is(err, domerr.ErrMissing):
		return apierr.NotFound(apierr.WithError(err))
	case errors.Is(err, domerr.ErrConflict), runnererrors.AsConflict(err):
		return apierr.Conflict(
			"conflict", apierr.WithAdvice("it is already requested."), apierr.WithError(err),
		)
	case errors.Is(err, domerr.ErrInvalidTransition):
		return apierr.Conflict(
			"status cannot be changed", apierr.WithAdvice("check the current status."), apierr.WithError(err),
		)
	case errors.Is(err, token.ErrInvalidToken):
		return apierr.Unauthorized("use the token given to the agent.", err)
	case errors.Is(err, hook.ErrHookFailed):
		return apierr.NewErrorMessage(
			http.StatusBadGateway, "hook failed",
			apierr.WithAdvice("check the hook server."), apierr.WithError(err),
		)
	case runnererrors.AsContainerRunnerError(err),
		errors.Is(err, runnererrors.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return apierr.ServiceUnavailable("container platform is not available. retry later.", err)
	default:
		return apierr.InternalServerError(err)
	}
}
