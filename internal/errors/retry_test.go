package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return stderrors.New("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(3), func() error {
		return stderrors.New("should not matter")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() ([]float32, error) {
		calls++
		if calls < 2 {
			return nil, stderrors.New("transient")
		}
		return []float32{1, 0, 0}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, result)
	assert.Equal(t, 2, calls)
}

func TestSingleRetryConfig_RetriesExactlyOnce(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), SingleRetryConfig(), func() (int, error) {
		calls++
		return 0, stderrors.New("timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls) // initial attempt + one retry
}

func TestRetry_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return New(ErrCodeInvalidInput, "bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrCodeInvalidInput, GetCode(err))
}

func TestRetryWithResult_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() (int, error) {
		calls++
		return 0, ConfigError("credentials rejected", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
