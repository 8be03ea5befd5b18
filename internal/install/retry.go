// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff retries op up to maxAttempts times with exponential backoff.
// The wait between attempts is interrupted by ctx cancellation.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure).
// On retry exhaustion, the last error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range max(maxAttempts, 1) {
		if attempt > 0 {
			if err := sleepCtx(ctx, baseBackoff*time.Duration(1<<(attempt-1))); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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
