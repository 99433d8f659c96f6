package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// Web is a Hook posting T as JSON to URLs in order.
//
// A hook succeeds only when every URL answers 2xx.
// The first failure stops the rest.
type Web[T any, R any] struct {
	BeforeURL []*url.URL
	AfterURL  []*url.URL

	// Merge folds answers of BeforeURL. When nil, the first answer is taken.
	Merge func(a, b R) R

	// Client defaults http.DefaultClient.
	Client *http.Client
}

// bodies of failed responses longer than this are truncated in errors.
const maxErrorBody = 4 << 10

func (w Web[T, R]) Before(ctx context.Context, value T) (R, error) {
	return w.call(ctx, w.BeforeURL, value)
}

func (w Web[T, R]) After(ctx context.Context, value T) error {
	_, err := w.call(ctx, w.AfterURL, value)
	return err
}

func (w Web[T, R]) call(ctx context.Context, urls []*url.URL, value T) (R, error) {
	var ret R
	if len(urls) == 0 {
		return ret, nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return ret, err
	}

	for nth, u := range urls {
		r, err := w.post(ctx, u, payload)
		if err != nil {
			return ret, err
		}
		switch {
		case nth == 0:
			ret = r
		case w.Merge != nil:
			ret = w.Merge(ret, r)
		}
	}
	return ret, nil
}

func (w Web[T, R]) post(ctx context.Context, u *url.URL, payload []byte) (R, error) {
	var ret R

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return ret, failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ret, failed(err)
	}
	defer resp.Body.Close()

	mediatype, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ret, fmt.Errorf(
			"%w: POST %s answered %d (%s): %s",
			ErrHookFailed, u.Redacted(), resp.StatusCode, mediatype, body,
		)
	}

	if mediatype != "application/json" {
		return ret, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return ret, failed(fmt.Errorf("POST %s: broken response: %w", u.Redacted(), err))
	}
	return ret, nil
}
