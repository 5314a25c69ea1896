package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        retries,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 1,
	}
}

func serverError() error {
	return &ServerError{ProviderError{SDKError: SDKError{Message: "server error"}, StatusCode: 500, Retryable: true}}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, BackoffMultiplier: 2, MaxDelay: time.Minute}
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		assert.Equal(t, want, policy.Delay(i), "attempt %d", i)
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, BackoffMultiplier: 2, MaxDelay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, policy.Delay(10))
}

func TestRetryPolicyDelayJitter(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, BackoffMultiplier: 2, MaxDelay: time.Minute, Jitter: true}
	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		assert.GreaterOrEqual(t, got, 500*time.Millisecond)
		assert.Less(t, got, 1500*time.Millisecond)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	policy := fastPolicy(3)
	policy.OnRetry = func(_ error, attempt int, _ time.Duration) { retried = append(retried, attempt) }

	got, err := Retry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", serverError()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, &AuthenticationError{ProviderError{SDKError: SDKError{Message: "bad key"}, StatusCode: 401}}
	})
	var auth *AuthenticationError
	require.ErrorAs(t, err, &auth)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(2), func(context.Context) (int, error) {
		calls++
		return 0, serverError()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryAfterExceedingMaxDelayReturnsImmediately(t *testing.T) {
	retryAfter := 120.0
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, &RateLimitError{ProviderError{SDKError: SDKError{Message: "slow down"}, StatusCode: 429, Retryable: true, RetryAfter: &retryAfter}}
	})
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 1, calls)
}

func TestRetryCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, BackoffMultiplier: 1}
	policy.OnRetry = func(error, int, time.Duration) { cancel() }

	_, err := Retry(ctx, policy, func(context.Context) (int, error) {
		return 0, serverError()
	})
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.True(t, errors.Is(err, context.Canceled))
}
