// Package fetch retrieves remote calendar documents for the fixture cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultUserAgent identifies the harness to calendar providers.
const DefaultUserAgent = "icalgate/1"

// Fetcher retrieves the full body behind a remote locator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Temporary reports whether retrying the request could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTP fetches documents over HTTP(S). The zero value performs exactly one
// attempt per Fetch with http.DefaultClient.
type HTTP struct {
	Client    *http.Client
	UserAgent string
	// Retries is the number of extra attempts after a transport error or a
	// temporary status. Client errors (4xx other than 429) are never retried.
	Retries uint
	// InitialInterval overrides the first backoff delay between attempts.
	InitialInterval time.Duration
}

var _ Fetcher = &HTTP{}

func (h *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	op := func() ([]byte, error) {
		body, err := h.get(ctx, url)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return body, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(h.backOff()),
		backoff.WithMaxTries(h.Retries+1),
	)
}

func (h *HTTP) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}

	ua := h.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	resp, err := h.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused by a retry
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return body, nil
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTP) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if h.InitialInterval > 0 {
		b.InitialInterval = h.InitialInterval
	}
	return b
}
