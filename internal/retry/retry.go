// Package retry runs an operation a fixed number of times with a constant
// delay between attempts. Delays never grow and carry no jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrExhausted is wrapped into the error returned once every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Logger     *zap.Logger
}

// DefaultPolicy is three attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Delay: time.Second}
}

// Permanent marks err as not worth retrying. Do returns it unwrapped after
// running the rollback for the failed attempt.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds or MaxRetries attempts have failed. After
// every failed attempt rollback is invoked, if non-nil, before sleeping.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error), rollback func()) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := p.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	attempt := 0
	permanent := false
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		if rollback != nil {
			rollback()
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = true
			return v, err
		}
		logger.Warn("attempt failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(maxRetries)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return result, nil
	}
	if permanent {
		return result, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && attempt < maxRetries {
		return result, fmt.Errorf("%s: %w", name, ctxErr)
	}
	return result, fmt.Errorf("%s failed after %d attempts: %w: %w", name, attempt, ErrExhausted, err)
}
