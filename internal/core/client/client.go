// Package client talks to the services around the rule model: the catalog
// service, the schema validation service, the SQL-generation service and the
// rule storage service. Every rule sent is the canonical persisted JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/types"
)

// maxResponseBytes bounds every response body read.
const maxResponseBytes = 16 << 20

// Options configures a service client.
type Options struct {
	// Token is sent as "Authorization: Bearer <token>" when set.
	Token string
	// Timeout bounds each attempt. Default 10s.
	Timeout time.Duration
	// MaxTries bounds attempts for transient failures. Default 3.
	MaxTries uint
	// InitialBackoff is the first retry delay. Default 200ms.
	InitialBackoff time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.Code, http.StatusText(e.Code), strings.TrimSpace(e.Body))
}

// transient reports whether a retry may succeed.
func (e *StatusError) transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type base struct {
	url     string
	hc      *http.Client
	token   string
	tries   uint
	backoff time.Duration
	log     *slog.Logger
}

func newBase(url string, opts Options) base {
	b := base{
		url:     strings.TrimRight(url, "/"),
		hc:      opts.HTTPClient,
		token:   opts.Token,
		tries:   opts.MaxTries,
		backoff: opts.InitialBackoff,
		log:     logging.OrDefault(opts.Logger),
	}
	if b.hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		b.hc = &http.Client{Timeout: timeout}
	}
	if b.tries == 0 {
		b.tries = 3
	}
	if b.backoff <= 0 {
		b.backoff = 200 * time.Millisecond
	}
	return b
}

// do sends an idempotent request: body to path, decoding a JSON response
// into out (nil skips decoding). Network errors, 429 and 5xx are retried
// with exponential backoff; other statuses fail at once with a *StatusError.
func (b base) do(ctx context.Context, method, path string, body []byte, out any) error {
	return b.send(ctx, method, path, body, out, b.tries)
}

// doOnce sends a request that changes server state. It is attempted once:
// a write may have been applied even when its response is lost.
func (b base) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	return b.send(ctx, method, path, body, out, 1)
}

func (b base) send(ctx context.Context, method, path string, body []byte, out any, tries uint) error {
	target := b.url + path

	attempt := func() (struct{}, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if b.token != "" {
			req.Header.Set("Authorization", "Bearer "+b.token)
		}

		resp, err := b.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			b.log.Warn("service request failed", "method", method, "url", target, "error", err)
			return struct{}{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return struct{}{}, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			serr := &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: string(data)}
			if serr.transient() {
				b.log.Warn("service request failed", "method", method, "url", target, "status", resp.StatusCode)
				return struct{}{}, serr
			}
			return struct{}{}, backoff.Permanent(serr)
		}
		if out == nil {
			return struct{}{}, nil
		}
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = append((*raw)[:0], data...)
			return struct{}{}, nil
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s %s response: %v", types.ErrInvalidJSON, method, target, err))
		}
		return struct{}{}, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.backoff
	_, err := backoff.Retry(ctx, attempt, backoff.WithBackOff(eb), backoff.WithMaxTries(tries))
	if err == nil {
		return nil
	}
	if serr, ok := asStatus(err); ok {
		if serr.transient() {
			return fmt.Errorf("%w: %w", types.ErrServiceUnavailable, serr)
		}
		return serr
	}
	if errors.Is(err, types.ErrInvalidJSON) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrServiceUnavailable, err)
}
