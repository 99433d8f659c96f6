package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	binderr "github.com/saveourtool/save-cloud/pkg/api-types-binding/errors"
	bindtests "github.com/saveourtool/save-cloud/pkg/api-types-binding/tests"
	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	"github.com/saveourtool/save-cloud/pkg/api/types/tests"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
	"github.com/saveourtool/save-cloud/pkg/token"
	"github.com/saveourtool/save-cloud/pkg/utils"
)

// PostTestStatusesHandler stores results reported by an agent.
//
// The agent should be of the Execution which the token is issued for.
func PostTestStatusesHandler(svc orchestration.Service, issuer *token.Issuer) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := claimsOf(c, issuer)
		if err != nil {
			return binderr.Compose(err)
		}

		report := new(tests.Report)
		if err := c.Bind(report); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		if report.ContainerId == "" {
			return apierr.BadRequest(
				"containerId is required.", errors.New("containerId is empty"),
			)
		}
		results, err := bindtests.ParseResults(report.Results)
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		saved, err := svc.SaveTestStatuses(c.Request().Context(), claims.ExecutionId, report.ContainerId, results)
		if err != nil {
			return binderr.Compose(err)
		}
		return c.JSON(http.StatusOK, tests.Saved{Saved: saved})
	}
}

// GetTestStatusesHandler lists tests of an Execution.
//
// Queries:
//
// - executionId: required.
//
// - status: optional, repeatable. Tests in any of them are listed.
//
// - agentId: optional.
func GetTestStatusesHandler(svc orchestration.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		executionId, err := parseExecutionId(c.QueryParam("executionId"))
		if err != nil {
			return apierr.BadRequest("query executionId is required.", err)
		}
		statuses, err := utils.MapUntilError(c.QueryParams()["status"], domain.AsTestStatus)
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		found, err := svc.FindTests(c.Request().Context(), domain.TestFindQuery{
			ExecutionId: executionId,
			Status:      statuses,
			AgentId:     c.QueryParam("agentId"),
		})
		if err != nil {
			return binderr.Compose(err)
		}
		return c.JSON(http.StatusOK, utils.Map(found, bindtests.ComposeDetail))
	}
}
