package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"timeout", errors.New("dial tcp: i/o timeout"), KindNetwork},
		{"connection refused", errors.New("connection refused"), KindNetwork},
		{"unauthorized", errors.New("401 unauthorized"), KindAuthentication},
		{"forbidden", errors.New("request forbidden: invalid api key"), KindAuthentication},
		{"rate limit", errors.New("429 too many requests: rate limit exceeded"), KindRateLimit},
		{"server error", errors.New("502 bad gateway"), KindServerError},
		{"client error", errors.New("400 bad request"), KindClientError},
		{"resource exhausted", errors.New("disk is full, resource limit reached"), KindResourceExhausted},
		{"unknown", errors.New("something weird happened"), KindUnknown},
		{"nil", nil, KindUnknown},
		{"context canceled", context.Canceled, KindCancelled},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestErrorKindRetryable(t *testing.T) {
	retryable := []ErrorKind{KindNetwork, KindRateLimit, KindServerError, KindResourceExhausted, KindTimeout}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), "%s should be retryable", k)
	}

	nonRetryable := []ErrorKind{KindAuthentication, KindClientError, KindUnknown, KindCircuitOpen, KindCancelled, KindInvalidInput, KindInternal}
	for _, k := range nonRetryable {
		assert.False(t, k.Retryable(), "%s should not be retryable", k)
	}
}

func TestRateLimitBaseWaitHint(t *testing.T) {
	assert.Equal(t, 10e9, float64(KindRateLimit.BaseWaitHint()))
	assert.Zero(t, KindNetwork.BaseWaitHint())
}

func TestNewAndPayload(t *testing.T) {
	ce := New(errors.New("429 quota exceeded"), "call_provider")
	assert.Equal(t, KindRateLimit, ce.Kind)
	assert.True(t, ce.Recoverable())

	payload := ce.ToPayload()
	assert.Equal(t, KindRateLimit, payload.ErrorKind)
	assert.True(t, payload.Recoverable)
}

func TestCircuitOpenError(t *testing.T) {
	ce := CircuitOpenError("fetch_data")
	assert.Equal(t, KindCircuitOpen, ce.Kind)
	assert.False(t, ce.Recoverable())
	assert.Contains(t, ce.Error(), "fetch_data")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dns lookup failed")
	ce := New(cause, "resolve_host")
	assert.ErrorIs(t, ce, cause)
}
