package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemp = errors.New("temporary")

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 3, Backoff: time.Millisecond}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTemp
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtAttempts(t *testing.T) {
	calls := 0
	var retried []int
	p := Policy{Attempts: 2, Backoff: time.Millisecond, OnRetry: func(a int, _ error, _ time.Duration) { retried = append(retried, a) }}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTemp
	})
	require.ErrorIs(t, err, errTemp)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, retried)
}

func TestDoSkipsNonRetryable(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 5, Backoff: time.Millisecond, Retryable: func(error) bool { return false }}
	_ = p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTemp
	})
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	p := Policy{Attempts: 5, Backoff: time.Hour}
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errTemp
	})
	require.ErrorIs(t, err, errTemp)
	assert.Equal(t, 1, calls)
}

func TestOnceNeverRetries(t *testing.T) {
	calls := 0
	_ = Once.Do(context.Background(), func(context.Context) error {
		calls++
		return errTemp
	})
	assert.Equal(t, 1, calls)
}
