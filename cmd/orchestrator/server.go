package main

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/saveourtool/save-cloud/cmd/orchestrator/handlers"
	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	kschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db"
	"github.com/saveourtool/save-cloud/pkg/metrics"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
	"github.com/saveourtool/save-cloud/pkg/token"
	"github.com/saveourtool/save-cloud/pkg/utils/echoutil"
)

func BuildServer(
	svc orchestration.Service,
	issuer *token.Issuer,
	schema kschema.SchemaInterface,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	loglevel string,
) *echo.Echo {
	e := echo.New()
	echoutil.SetLevel(e, loglevel)

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		respondError(e, err, ctx)
		if herr := new(echo.HTTPError); !errors.As(err, &herr) || http.StatusInternalServerError <= herr.Code {
			e.Logger.Error(err)
		} else {
			e.Logger.Info(err)
		}
	}

	e.Use(echoutil.LogHandlerFunc("/healthz", "/metrics", "/heartbeat"))
	e.Use(echoutil.MetricsHandlerFunc(m))

	// called by the backend
	e.POST("/initializeAgents", handlers.InitializeAgentsHandler(svc))
	e.POST("/stopAgents", handlers.StopAgentsHandler(svc))
	e.POST("/cleanup", handlers.CleanupHandler(svc))
	e.GET("/executions/:executionId", handlers.GetExecutionHandler(svc, "executionId"))
	e.GET("/testStatuses", handlers.GetTestStatusesHandler(svc))

	// called by agents
	e.POST("/heartbeat", handlers.HeartbeatHandler(svc, issuer))
	e.POST("/testStatuses", handlers.PostTestStatusesHandler(svc, issuer))

	e.GET("/healthz", handlers.HealthzHandler(schema))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	return e
}

// respondError writes ErrorResponse for errors built by apierr,
// and leaves others to echo.
func respondError(e *echo.Echo, err error, ctx echo.Context) {
	herr := new(echo.HTTPError)
	if !errors.As(err, &herr) || ctx.Response().Committed {
		e.DefaultHTTPErrorHandler(err, ctx)
		return
	}
	msg, ok := herr.Message.(apierr.ErrorMessage)
	if !ok {
		e.DefaultHTTPErrorHandler(err, ctx)
		return
	}
	if werr := ctx.JSON(herr.Code, apierr.ErrorResponse{Message: msg}); werr != nil {
		e.Logger.Error(werr)
	}
}
