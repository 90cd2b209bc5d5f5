package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(n int) Policy {
	return Policy{MaxRetries: n, Delay: time.Millisecond}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls, rollbacks := 0, 0
	v, err := Do(context.Background(), fastPolicy(3), "fetch", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	}, func() { rollbacks++ })

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, rollbacks)
}

func TestDo_Exhausted(t *testing.T) {
	calls, rollbacks := 0, 0
	_, err := Do(context.Background(), fastPolicy(3), "fetch table metadata", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("relation does not exist")
	}, func() { rollbacks++ })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, rollbacks)
	assert.Contains(t, err.Error(), "fetch table metadata failed after 3 attempts")
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestDo_Permanent(t *testing.T) {
	notFound := errors.New("user not found")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "lookup", func(context.Context) (int, error) {
		calls++
		return 0, Permanent(notFound)
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, notFound)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroRetriesStillRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, "once", func(context.Context) (int, error) {
		calls++
		return 1, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxRetries: 10, Delay: time.Hour}, "slow", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
