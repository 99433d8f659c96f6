// Package errors defines the error body the orchestrator responds with,
// and echo.HTTPError builders for it.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of non-2xx responses.
type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`

	// Cause is kept in the server side. It is not marshalled.
	Cause error `json:"-"`
}

func (em *ErrorMessage) UnmarshalJSON(b []byte) error {
	f := struct {
		Reason *string `json:"reason"`
		Advice string  `json:"advice"`
	}{}
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f.Reason == nil {
		return errors.New(`required field missing: "reason"`)
	}
	*em = ErrorMessage{Reason: *f.Reason, Advice: f.Advice}
	return nil
}

func (em ErrorMessage) Error() string {
	b := new(strings.Builder)
	b.WriteString(em.Reason)
	if em.Advice != "" {
		b.WriteString("\n" + em.Advice)
	}
	if em.Cause != nil {
		b.WriteString("\n caused by: " + em.Cause.Error())
	}
	return b.String()
}

func (em ErrorMessage) String() string {
	return em.Error()
}

func (em ErrorMessage) Unwrap() error {
	return em.Cause
}

type ErrorMessageOption func(*ErrorMessage)

func WithAdvice(advice string) ErrorMessageOption {
	return func(em *ErrorMessage) {
		em.Advice = advice
	}
}

func WithError(err error) ErrorMessageOption {
	return func(em *ErrorMessage) {
		em.Cause = err
	}
}

// NewErrorMessage builds echo.HTTPError which is responded as ErrorResponse.
func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		opt(&msg)
	}
	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusBadRequest, "bad request", WithAdvice(advice), WithError(err))
}

// Unauthorized is for agents presenting no or broken tokens.
func Unauthorized(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusUnauthorized, "unauthorized", WithAdvice(advice), WithError(err))
}

func NotFound(options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found", options...)
}

func Conflict(reason string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusConflict, reason, options...)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusInternalServerError, "unexpected error", WithError(err))
}

func ServiceUnavailable(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusServiceUnavailable, "service unavailable temporarily",
		WithAdvice(advice), WithError(err),
	)
}
