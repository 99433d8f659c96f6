package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	kschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db"
)

// HealthzHandler responds 200 while the database is reachable.
func HealthzHandler(schema kschema.SchemaInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := schema.Version(c.Request().Context()); err != nil {
			return apierr.ServiceUnavailable("database is not reachable.", err)
		}
		return c.String(http.StatusOK, "ok")
	}
}
