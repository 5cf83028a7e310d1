package apiclient

import (
	"context"
	"encoding/json"
	"time"
)

// RequestWithRetry calls Request up to maxAttempts times. Between attempt k
// and k+1 it waits 2^(k-1) * RetryBaseDelay (exponential backoff, no
// jitter). The first success is returned; when every attempt fails, the
// last observed error is surfaced wrapped in *RetriesExhausted.
func (c *Client) RequestWithRetry(ctx context.Context, method, path string, body any, maxAttempts int) (json.RawMessage, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := c.Request(ctx, method, path, body, 0)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !Retryable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := c.cfg.RetryBaseDelay << (attempt - 1)
		c.logger.Warn("retrying request",
			"method", method,
			"path", path,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", delay.String(),
			"error", err,
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, ErrAborted
		}
	}

	return nil, &RetriesExhausted{Attempts: maxAttempts, Err: lastErr}
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
