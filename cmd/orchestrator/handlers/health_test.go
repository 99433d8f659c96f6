package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/saveourtool/save-cloud/cmd/orchestrator/handlers"
	httptestutil "github.com/saveourtool/save-cloud/internal/testutils/http"
)

type fakeSchema struct {
	err error
}

func (s fakeSchema) Upgrade(context.Context) error { return nil }

func (s fakeSchema) Version(context.Context) (int, error) { return 1, s.err }

func (s fakeSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

func TestHealthzHandler(t *testing.T) {
	t.Run("while the database is reachable, it responds 200", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/healthz")
		if err := handlers.HealthzHandler(fakeSchema{})(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusOK, resp.Code)
		}
	})

	t.Run("when the database is not reachable, it responds 503", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Get(e, "/healthz")
		err := handlers.HealthzHandler(fakeSchema{err: errors.New("connection refused")})(c)
		if actual := statusOf(err); actual != http.StatusServiceUnavailable {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusServiceUnavailable, actual)
		}
	})
}
