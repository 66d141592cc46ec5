package portal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/metrics"
)

// BackoffPolicy bounds fetch attempts and the delays between them.
//
// Delays only separate attempts. Five attempts starting at 1s sleep 1, 2, 4
// and 8 seconds; the fifth failure is returned at once rather than after a
// further 16s wait that no attempt would follow.
type BackoffPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// Delay returns the wait after the given failed attempt (1-based):
// Initial * 2^(attempt-1), capped at Max.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}

// Client retries an attempt Fetcher with exponential backoff.
type Client struct {
	fetcher Fetcher
	policy  BackoffPolicy
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient wraps fetcher with policy. MaxAttempts below 1 is treated as 1.
func NewClient(fetcher Fetcher, policy BackoffPolicy, logger *zap.Logger) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{fetcher: fetcher, policy: policy, logger: logger, sleep: sleepContext}
}

// Fetch calls the underlying fetcher until it succeeds or attempts run out.
// The last attempt error is returned wrapped.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		body, err := c.fetcher.Fetch(ctx)
		if err == nil {
			metrics.ObserveFetchAttempt("success")
			if attempt > 1 {
				c.logger.Info("portal fetch recovered", zap.Int("attempt", attempt))
			}
			return body, nil
		}
		metrics.ObserveFetchAttempt("error")
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("portal fetch canceled after %d attempt(s): %w", attempt, ctxErr)
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		c.logger.Warn("portal fetch failed; retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("portal fetch canceled after %d attempt(s): %w", attempt, err)
		}
	}
	return nil, fmt.Errorf("portal fetch failed after %d attempt(s): %w", c.policy.MaxAttempts, lastErr)
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

