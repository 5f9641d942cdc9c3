package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/njoerd114/roomsync/internal/model"
)

const (
	// defaultMaxAttempts is the number of tries before Retry gives up.
	defaultMaxAttempts = 3

	// defaultRetryDelay is the fixed pause between attempts. Together with
	// defaultCallTimeout this bounds one operation's remote phase at 1.75s
	// (see OpBudget).
	defaultRetryDelay = 500 * time.Millisecond
)

// Retry executes fn up to maxAttempts times with a fixed delay between
// attempts. Only errors wrapping [model.ErrTransient] are retried; any other
// error is returned immediately. On exhaustion the last failure is returned
// wrapped.
func Retry(ctx context.Context, maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, model.ErrTransient) {
			return lastErr
		}

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}
