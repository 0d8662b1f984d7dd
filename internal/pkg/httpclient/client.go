// Package httpclient holds the HTTP plumbing shared by the external API
// clients: the HTTPDoer seam, typed API errors with status classification,
// and context-aware pacing between requests.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// *http.Client and oauth2-authorized clients both satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a plain client with the given timeout (30s when zero).
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, msg)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports a 401 or 403 response.
func IsUnauthorized(err error) bool {
	switch StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// IsRateLimited reports a 429 response.
func IsRateLimited(err error) bool {
	return StatusOf(err) == http.StatusTooManyRequests
}

// IsServerError reports a transient upstream failure (500, 502, 503, 504).
func IsServerError(err error) bool {
	switch StatusOf(err) {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ReadResponse drains and closes resp. Non-2xx responses become *APIError;
// messageOf, when non-nil, extracts a human message from the error body.
func ReadResponse(service string, resp *http.Response, messageOf func([]byte) string) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
		if messageOf != nil {
			apiErr.Message = messageOf(body)
		}
		return nil, apiErr
	}

	return body, nil
}

// Pause blocks for d or until ctx is done. A non-positive d returns at once.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PauseFunc matches Pause; clients take one so tests can record pacing
// instead of sleeping.
type PauseFunc func(ctx context.Context, d time.Duration) error
