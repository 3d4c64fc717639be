package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

// StatusNoResponse marks a Response for which no attempt produced an HTTP status
const StatusNoResponse = 0

// Outcome is the classification of a single attempt
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRecoverable
	OutcomeAuthentication
	OutcomeRateLimited
)

// Classify maps an HTTP status to its retry outcome
func Classify(status int) Outcome {
	switch status {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return OutcomeSuccess
	case http.StatusUnauthorized, http.StatusForbidden:
		return OutcomeAuthentication
	case http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeRecoverable
	}
}

// RequestFunc performs one attempt
type RequestFunc func(ctx context.Context) (Response, error)

// RetryOptions configure one retried call
type RetryOptions struct {
	Attempts int
	Delay    time.Duration
	// Default is returned as the body when attempts run out and RaiseOnExhaustion is false
	Default           string
	RaiseOnExhaustion bool
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Retrier drives the bounded fixed-delay retry loop
type Retrier struct {
	sleep  Sleeper
	logger *zap.Logger
}

// NewRetrier creates a Retrier that sleeps on the wall clock
func NewRetrier(logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{sleep: sleepContext, logger: logger}
}

// WithSleeper replaces the delay implementation, mainly for tests
func (r *Retrier) WithSleeper(s Sleeper) *Retrier {
	r.sleep = s
	return r
}

// Do calls fn until it succeeds, fails authentication, or the attempt budget runs out.
//
// 200/202/204 return immediately. 401/403 fail immediately with ErrAuthentication.
// Everything else, transport errors included, waits Delay and tries again. On
// exhaustion the last transport error wins over a 429, which wins over the last body.
func (r *Retrier) Do(ctx context.Context, fn RequestFunc, opts RetryOptions) (Response, error) {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		last    Response
		seen    bool
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := fn(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Response{}, ctxErr
			}
			lastErr = err
			r.logger.Warn("request attempt failed",
				zap.Int("attempt", attempt), zap.Int("attempts", attempts), zap.Error(err))
		} else {
			last, seen = resp, true
			switch Classify(resp.StatusCode) {
			case OutcomeSuccess:
				return resp, nil
			case OutcomeAuthentication:
				r.logger.Error("authentication failure",
					zap.Int("status", resp.StatusCode), zap.String("url", resp.URL))
				return resp, fmt.Errorf("%w: status %d from %s", domain.ErrAuthentication, resp.StatusCode, resp.URL)
			}
			r.logger.Warn("unexpected status",
				zap.Int("attempt", attempt), zap.Int("attempts", attempts),
				zap.Int("status", resp.StatusCode), zap.String("url", resp.URL))
		}

		if attempt < attempts {
			if err := r.sleep(ctx, opts.Delay); err != nil {
				return Response{}, err
			}
		}
	}

	if !opts.RaiseOnExhaustion {
		if seen {
			return Response{URL: last.URL, StatusCode: last.StatusCode, Body: opts.Default}, nil
		}
		return Response{StatusCode: StatusNoResponse, Body: opts.Default}, nil
	}

	switch {
	case lastErr != nil:
		return Response{}, fmt.Errorf("%w: %w", domain.ErrRequestFailed, lastErr)
	case last.StatusCode == http.StatusTooManyRequests:
		return last, fmt.Errorf("%w: %s", domain.ErrRateLimited, last.URL)
	default:
		return last, fmt.Errorf("%w: status %d: %s", domain.ErrRequestFailed, last.StatusCode, truncate(last.Body, 200))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
