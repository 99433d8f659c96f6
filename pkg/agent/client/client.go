// Package client talks to the orchestrator on behalf of save-agent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	apierr "github.com/saveourtool/save-cloud/pkg/api/types/errors"
	"github.com/saveourtool/save-cloud/pkg/api/types/heartbeats"
	"github.com/saveourtool/save-cloud/pkg/api/types/tests"
	"github.com/saveourtool/save-cloud/pkg/buildtime"
	"github.com/saveourtool/save-cloud/pkg/utils/retry"
)

// ErrUnreachable means the orchestrator could not be reached.
var ErrUnreachable = errors.New("orchestrator is unreachable")

// ErrFailure means the orchestrator answered with an error status.
var ErrFailure = errors.New("orchestrator answered with error")

// ResponseError is an error status from the orchestrator.
type ResponseError struct {
	StatusCode int
	Message    apierr.ErrorMessage
}

func (e *ResponseError) Error() string {
	if e.Message.Reason == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message.String())
}

func (e *ResponseError) Unwrap() error {
	return ErrFailure
}

// Retryable tells whether the same request can succeed later.
func (e *ResponseError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || 500 <= e.StatusCode
}

type Client interface {
	// Heartbeat sends a heartbeat and returns an instruction.
	//
	// # Returns
	//
	// - heartbeats.Response
	//
	// - error: wraps ErrUnreachable or ErrFailure.
	Heartbeat(ctx context.Context, hb heartbeats.Heartbeat) (heartbeats.Response, error)

	// PostTestStatuses uploads results of tests.
	//
	// # Returns
	//
	// - int: the number of saved results.
	//
	// - error: wraps ErrUnreachable or ErrFailure. For ErrFailure, it is *ResponseError.
	PostTestStatuses(ctx context.Context, report tests.Report) (int, error)
}

type client struct {
	base     *url.URL
	token    string
	http     *http.Client
	attempts int
	backoff  time.Duration
}

type Option func(*client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *client) {
		c.http = h
	}
}

// WithRetry sets how many times a request is tried, and interval between them.
//
// Default: 3 times, 1 second.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *client) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// New returns a Client for the orchestrator at base.
//
// token is sent as a bearer token.
func New(base string, token string, options ...Option) (Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("orchestrator url should be http or https: %s", base)
	}

	c := &client{
		base:     u,
		token:    token,
		http:     http.DefaultClient,
		attempts: 3,
		backoff:  time.Second,
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

func (c *client) Heartbeat(ctx context.Context, hb heartbeats.Heartbeat) (heartbeats.Response, error) {
	env := heartbeats.Envelope{}
	if err := c.post(ctx, "heartbeat", hb, &env); err != nil {
		return nil, err
	}
	return env.Response, nil
}

func (c *client) PostTestStatuses(ctx context.Context, report tests.Report) (int, error) {
	saved := tests.Saved{}
	if err := c.post(ctx, "testStatuses", report, &saved); err != nil {
		return 0, err
	}
	return saved.Saved, nil
}

// post sends req as json and decodes the response into resp, with retries.
func (c *client) post(ctx context.Context, path string, req any, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	endpoint := c.base.JoinPath(path).String()

	_, err = retry.Blocking(
		ctx, retry.Limited(c.attempts, retry.StaticBackoff(c.backoff)),
		func() (struct{}, error) {
			err := c.send(ctx, endpoint, body, resp)
			if err == nil {
				return struct{}{}, nil
			}
			if rerr := new(ResponseError); errors.As(err, &rerr) && !rerr.Retryable() {
				return struct{}{}, err
			}
			return struct{}{}, errors.Join(retry.ErrRetry, err)
		},
	)
	return err
}

func (c *client) send(ctx context.Context, endpoint string, body []byte, resp any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", buildtime.UserAgent("save-agent"))

	r, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}

	if r.StatusCode < 200 || 300 <= r.StatusCode {
		rerr := &ResponseError{StatusCode: r.StatusCode}
		if isJSON(r.Header.Get("Content-Type")) {
			msg := apierr.ErrorResponse{}
			if json.Unmarshal(payload, &msg) == nil {
				rerr.Message = msg.Message
			}
		}
		return rerr
	}

	if err := json.Unmarshal(payload, resp); err != nil {
		return fmt.Errorf("%w: broken response: %w", ErrFailure, err)
	}
	return nil
}

func isJSON(contentType string) bool {
	mediatype, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediatype == "application/json"
}
