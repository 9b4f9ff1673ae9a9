package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// RetryPolicy bounds how long a confirmation is waited on. An on-chain
// execution error is fatal immediately; an unconfirmed or transport result
// is retried after the backoff, up to MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy checks confirmation 3 times, 2 seconds apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}

// Confirm polls a submitted transaction until it reaches the writer's
// commitment, the ledger rejects it, or the attempt budget runs out. A
// rejection surfaces as *ExecutionError; an exhausted budget surfaces the
// last retryable error.
func (p RetryPolicy) Confirm(ctx context.Context, w Writer, sig solana.Signature) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(p.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := w.ConfirmTransaction(ctx, sig)
		if err == nil {
			return nil
		}

		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("transaction %s not confirmed after %d attempts: %w", sig, attempts, lastErr)
}
