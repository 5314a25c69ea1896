package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		check     func(error) bool
	}{
		{400, false, func(err error) bool { var e *InvalidRequestError; return errors.As(err, &e) }},
		{401, false, func(err error) bool { var e *AuthenticationError; return errors.As(err, &e) }},
		{403, false, func(err error) bool { var e *AccessDeniedError; return errors.As(err, &e) }},
		{404, false, func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }},
		{408, true, func(err error) bool { var e *RequestTimeoutError; return errors.As(err, &e) }},
		{413, false, func(err error) bool { var e *ContextLengthError; return errors.As(err, &e) }},
		{429, true, func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{503, true, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
		{418, true, func(err error) bool { var e *ProviderError; return errors.As(err, &e) }},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ErrorFromStatusCode(tt.status, "boom", "openai", nil)
			assert.True(t, tt.check(err), "wrong type %T", err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.False(t, IsRetryable(&AbortError{SDKError{Message: "cancelled"}}))
	assert.False(t, IsRetryable(&ConfigurationError{SDKError{Message: "no provider"}}))
	assert.True(t, IsRetryable(&NetworkError{SDKError{Message: "dial"}}))

	wrapped := fmt.Errorf("fetch: %w", &ContentFilterError{ProviderError{SDKError: SDKError{Message: "blocked"}}})
	assert.False(t, IsRetryable(wrapped))
}

func TestSDKErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &NetworkError{SDKError{Message: "network", Cause: cause}}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "network: root cause", err.Error())
}
