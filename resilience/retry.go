// Package resilience wraps outbound HTTP calls to the authorization server
// with a bounded exponential-backoff retry policy.
package resilience

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// Policy bounds retries for one class of outbound call. The zero value is
// usable and applies the defaults below. Policies are injectable per
// deployment; different providers may need different tolerances.
type Policy struct {
	// Attempts is the maximum number of attempts including the first.
	// Defaults to 4.
	Attempts int
	// Base is the delay unit between attempts; attempt n waits
	// Base * 2^(n-1). Defaults to 1s, giving 1s, 2s, 4s between the
	// default four attempts.
	Base time.Duration
	// Logger receives per-attempt records. Nil means the logrus standard
	// logger.
	Logger logrus.FieldLogger
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 4
	}
	if p.Base <= 0 {
		p.Base = time.Second
	}
	if p.Logger == nil {
		p.Logger = logrus.StandardLogger()
	}
	return p
}

// StatusError reports a non-2xx response from the authorization server.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: %s returned status %d", e.URL, e.Code)
}

// retryableStatus reports whether a response status is treated as possibly
// transient. Not-found is included: discovery documents can briefly 404
// during provider rollout. Other 4xx propagate immediately.
func retryableStatus(code int) bool {
	return code == http.StatusNotFound
}

// Permanent marks err as non-retryable so Do propagates it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op under the policy, retrying transient failures with exponentially
// growing delays. It returns the first success, the first permanent error, or
// the last error once attempts are exhausted. Cancelling ctx aborts the wait
// between attempts as well as the attempts themselves.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Base
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.Base << 10

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		out, err := op(ctx)
		if err != nil {
			p.Logger.WithFields(logrus.Fields{
				"call":    name,
				"attempt": attempt,
			}).WithError(err).Debug("outbound call failed")
		}
		return out, err
	}

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(p.Attempts)),
	)
}

// GetJSON fetches url through the policy and returns the response body.
// Transport failures and not-found responses are retried; any other non-2xx
// status propagates immediately as a *StatusError.
func GetJSON(ctx context.Context, p Policy, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return Do(ctx, p, url, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		return roundTrip(client, req)
	})
}

// PostForm posts a form body to url through the policy. The newReq factory is
// invoked once per attempt so the body can be re-read.
func PostForm(ctx context.Context, p Policy, client *http.Client, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return Do(ctx, p, "introspection", func(ctx context.Context) ([]byte, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return roundTrip(client, req)
	})
}

func roundTrip(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		// Transport failure: retryable unless the context is gone.
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, backoff.Permanent(ctxErr)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		if retryableStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}
