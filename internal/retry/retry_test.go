package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostflow/ghostflow/internal/retry"
)

type retryableError struct{}

func (retryableError) Error() string { return "retryable" }

type terminalError struct{}

func (terminalError) Error() string { return "terminal" }

func noSleep(time.Duration) {}

func isRetryable(err error) bool {
	_, ok := err.(retryableError)
	return ok
}

func TestDoEventualSuccess(t *testing.T) {
	calls := 0
	k := 2
	_, err := retry.Do(retry.Options{Limit: 5, Sleep: noSleep}, isRetryable, func() (int, error) {
		calls++
		if calls <= k {
			return 0, retryableError{}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, k+1, calls)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	_, err := retry.Do(retry.Options{Limit: 5, Sleep: noSleep}, isRetryable, func() (int, error) {
		calls++
		return 0, retryableError{}
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
}

func TestDoNonRetryableSurfacesImmediately(t *testing.T) {
	calls := 0
	_, err := retry.Do(retry.Options{Limit: 5, Sleep: noSleep}, isRetryable, func() (int, error) {
		calls++
		return 0, terminalError{}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, terminalError{}, err)
}
