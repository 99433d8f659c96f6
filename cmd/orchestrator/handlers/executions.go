package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	binderr "github.com/saveourtool/save-cloud/pkg/api-types-binding/errors"
	bindexec "github.com/saveourtool/save-cloud/pkg/api-types-binding/executions"
	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	"github.com/saveourtool/save-cloud/pkg/api/types/executions"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
)

var errInvalidExecutionId = errors.New("executionId should be a positive integer")

// InitializeAgentsHandler starts an Execution.
//
// It responds 202 with the detail of the started Execution.
func InitializeAgentsHandler(svc orchestration.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		req := new(executions.Request)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		if req.ExecutionId <= 0 {
			return apierr.BadRequest("executionId is required.", errInvalidExecutionId)
		}
		if req.Replicas <= 0 {
			return apierr.BadRequest(
				"replicas should be 1 or more.", errors.New("replicas is not positive"),
			)
		}

		spec, tests := bindexec.ParseRequest(*req)
		started, err := svc.InitializeAgents(ctx, spec, tests)
		if err != nil {
			return binderr.Compose(err)
		}

		detail, err := svc.Detail(ctx, started.Id)
		if err != nil {
			c.Logger().Warnf("execution %d is started, but detail is not available: %s", started.Id, err)
			detail = &domain.ExecutionDetail{Execution: *started}
		}
		return c.JSON(http.StatusAccepted, bindexec.ComposeDetail(*detail))
	}
}

func GetExecutionHandler(svc orchestration.Service, executionIdParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		executionId, err := parseExecutionId(c.Param(executionIdParam))
		if err != nil {
			return apierr.NotFound(apierr.WithError(err))
		}

		detail, err := svc.Detail(c.Request().Context(), executionId)
		if err != nil {
			return binderr.Compose(err)
		}
		return c.JSON(http.StatusOK, bindexec.ComposeDetail(*detail))
	}
}

// StopAgentsHandler stops containers listed in the request body.
//
// The body is a json array of container ids.
func StopAgentsHandler(svc orchestration.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		containerIds := []string{}
		if err := c.Bind(&containerIds); err != nil {
			return apierr.BadRequest("the body should be an array of container ids", err)
		}

		stopped, err := svc.StopAgents(c.Request().Context(), containerIds)
		if err != nil {
			return binderr.Compose(err)
		}
		return c.JSON(http.StatusOK, executions.StopResult{Stopped: stopped})
	}
}

// CleanupHandler removes containers of the Execution given as query "executionId".
func CleanupHandler(svc orchestration.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		executionId, err := parseExecutionId(c.QueryParam("executionId"))
		if err != nil {
			return apierr.BadRequest("query executionId is required.", err)
		}

		if err := svc.Cleanup(c.Request().Context(), executionId); err != nil {
			return binderr.Compose(err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func parseExecutionId(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Join(errInvalidExecutionId, err)
	}
	if id <= 0 {
		return 0, errInvalidExecutionId
	}
	return id, nil
}
