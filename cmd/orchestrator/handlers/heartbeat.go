package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	binderr "github.com/saveourtool/save-cloud/pkg/api-types-binding/errors"
	bindhb "github.com/saveourtool/save-cloud/pkg/api-types-binding/heartbeats"
	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	"github.com/saveourtool/save-cloud/pkg/api/types/heartbeats"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
	"github.com/saveourtool/save-cloud/pkg/token"
)

// HeartbeatHandler answers heartbeats from agents.
//
// Agents should send the token given as SAVE_AGENT_TOKEN, and the token
// should be issued for the Execution in the heartbeat.
func HeartbeatHandler(svc orchestration.Service, issuer *token.Issuer) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := claimsOf(c, issuer)
		if err != nil {
			return binderr.Compose(err)
		}

		req := new(heartbeats.Heartbeat)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		hb, err := bindhb.ParseHeartbeat(*req)
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}
		if hb.ExecutionId != claims.ExecutionId {
			return binderr.Compose(fmt.Errorf(
				"%w: the token is for execution %d, not %d",
				token.ErrInvalidToken, claims.ExecutionId, hb.ExecutionId,
			))
		}

		reply, err := svc.Heartbeat(c.Request().Context(), hb)
		if err != nil {
			return binderr.Compose(err)
		}
		resp, err := bindhb.ComposeResponse(reply)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, heartbeats.Envelope{Response: resp})
	}
}
