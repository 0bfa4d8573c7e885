package adsb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
			attempts++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("temporary error")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("max retries exceeded preserves error", func(t *testing.T) {
		want := errors.New("persistent error")
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
			attempts++
			return want
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, want)
		// initial + 3 retries
		assert.Equal(t, 4, attempts)
	})

	t.Run("zero retries", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetry(0), func() error {
			attempts++
			return errors.New("error")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		cfg := fastRetry(5)
		cfg.InitialDelay = time.Hour
		cfg.MaxDelay = time.Hour
		err := RetryWithBackoff(ctx, cfg, func() error {
			attempts++
			return errors.New("error")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}

func TestBackoffDelays(t *testing.T) {
	var delays []time.Duration
	cfg := RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
		OnRetry: func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		},
	}

	_ = RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("error")
	})

	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, delays)
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	var delays []time.Duration
	cfg := fastRetry(1)
	cfg.OnRetry = func(_ int, _ error, d time.Duration) {
		delays = append(delays, d)
	}

	attempts := 0
	_, err := RetryWithBackoffResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &RateLimitError{StatusCode: 429, RetryAfter: 3 * time.Millisecond, Message: "slow down"}
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Millisecond}, delays)
}

func TestRetryWithBackoffResult(t *testing.T) {
	t.Run("success with result", func(t *testing.T) {
		attempts := 0
		result, err := RetryWithBackoffResult(context.Background(), fastRetry(3), func() (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("temporary error")
			}
			return "success", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, attempts)
	})

	t.Run("failure returns last value", func(t *testing.T) {
		result, err := RetryWithBackoffResult(context.Background(), fastRetry(1), func() (int, error) {
			return 0, errors.New("persistent error")
		})
		assert.Error(t, err)
		assert.Equal(t, 0, result)
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 60*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.True(t, cfg.RespectRetryAfter)
}
