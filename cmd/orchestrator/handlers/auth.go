package handlers

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/saveourtool/save-cloud/pkg/token"
)

// claimsOf verifies the bearer token in the request.
func claimsOf(c echo.Context, issuer *token.Issuer) (*token.AgentClaims, error) {
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, tok, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
		return nil, fmt.Errorf("%w: bearer token is required", token.ErrInvalidToken)
	}
	return issuer.Verify(strings.TrimSpace(tok))
}
