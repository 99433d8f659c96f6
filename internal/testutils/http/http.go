// Package http builds echo.Context for handler tests.
package http

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

// RequestOption modifies the request before the handler sees it.
type RequestOption func(*http.Request)

func ContentType(ctyp string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(echo.HeaderContentType, ctyp)
	}
}

// Bearer sets "Authorization: Bearer TOKEN".
func Bearer(token string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
}

func Get(e *echo.Echo, target string, options ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return newContext(e, httptest.NewRequest(http.MethodGet, target, nil), options)
}

func Post(e *echo.Echo, target string, body io.Reader, options ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return newContext(e, httptest.NewRequest(http.MethodPost, target, body), options)
}

func newContext(e *echo.Echo, req *http.Request, options []RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	for _, opt := range options {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
