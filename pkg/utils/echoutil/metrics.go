package echoutil

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/saveourtool/save-cloud/pkg/metrics"
)

// MetricsHandlerFunc counts requests and observes their latency, per route.
func MetricsHandlerFunc(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			BEGIN := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unknown"
			}
			meth := c.Request().Method
			m.HTTPRequestsTotal.WithLabelValues(meth, path, strconv.Itoa(statusOf(c, err))).Inc()
			m.HTTPRequestDuration.WithLabelValues(meth, path).Observe(time.Since(BEGIN).Seconds())
			return err
		}
	}
}

// statusOf tells the status code which is (or will be) responded.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if herr := new(echo.HTTPError); errors.As(err, &herr) {
		return herr.Code
	}
	return http.StatusInternalServerError
}
