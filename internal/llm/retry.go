package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider retries failures that can clear on their own. A caller is
// blocked on every request, so no wait may outlive the context deadline or
// exceed MaxWait; when one would, the last vendor error is returned at once
// and the caller reports the service as busy.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var (
		lastErr        error
		invalidRetried bool
	)
	for attempt := range r.config.MaxAttempts {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		wait, ok := r.next(ctx, attempt, err, &invalidRetried)
		if !ok {
			return nil, err
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// next reports whether err deserves another attempt and how long to wait
// before it.
func (r *RetryProvider) next(ctx context.Context, attempt int, err error, invalidRetried *bool) (time.Duration, bool) {
	var (
		limited  *ErrRateLimit
		invalid  *ErrInvalidResponse
		rejected *ErrRejected
		maxTok   *ErrMaxTokensExceeded
	)
	var wait time.Duration
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 0, false
	case errors.As(err, &rejected), errors.As(err, &maxTok):
		// Same request, same answer.
		return 0, false
	case errors.As(err, &invalid):
		if *invalidRetried {
			return 0, false
		}
		*invalidRetried = true
		return 0, true
	case errors.As(err, &limited) && limited.RetryAfter > 0:
		if limited.RetryAfter > r.config.MaxWait {
			return 0, false
		}
		wait = limited.RetryAfter
	default:
		wait = r.backoff(attempt)
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		return 0, false
	}
	return wait, true
}

// backoff is exponential in attempt, capped at MaxWait, with 20% jitter
// either way.
func (r *RetryProvider) backoff(attempt int) time.Duration {
	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	wait = min(wait, float64(r.config.MaxWait))
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(max(wait, 0))
}
