package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/moneyball/internal/platform/resilience"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

const okBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Pedri adalah "},{"text":"gelandang kreatif."}]},"finishReason":"STOP"}]}`

const quotaBody = `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker resilience.CircuitBreakerConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:        srv.URL,
		APIKey:         "secret-key",
		Model:          "gemini-test",
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		CircuitBreaker: breaker,
	})
}

func TestClient_GenerateSendsPromptAndJoinsParts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"text":"Describe Pedri"`)
		_, _ = w.Write([]byte(okBody))
	}, resilience.CircuitBreakerConfig{})

	out, err := client.Generate(t.Context(), "Describe Pedri")
	require.NoError(t, err)
	assert.Equal(t, "Pedri adalah gelandang kreatif.", out)
}

func TestClient_RetriesQuotaResponses(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(quotaBody))
			return
		}
		_, _ = w.Write([]byte(okBody))
	}, resilience.CircuitBreakerConfig{})

	out, err := client.Generate(t.Context(), "prompt")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ResourceExhaustedBodyIsRetryable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}, resilience.CircuitBreakerConfig{})

	_, err := client.Generate(t.Context(), "prompt")
	require.Error(t, err)
	assert.True(t, crerr.Is(err, ErrRateLimited))
	assert.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NonQuotaErrorsFailFast(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key secret-key"}}`))
	}, resilience.CircuitBreakerConfig{})

	_, err := client.Generate(t.Context(), "prompt")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, errors.Is(err, usecase.ErrDependencyUnavailable))
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Hour})

	_, err := client.Generate(t.Context(), "prompt")
	require.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))

	_, err = client.Generate(t.Context(), "prompt")
	require.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CanceledCallsDoNotResetBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: time.Hour})

	_, err := client.Generate(t.Context(), "prompt")
	require.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))

	canceled, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = client.Generate(canceled, "prompt")
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, resilience.CircuitStateClosed, client.breaker.State())

	_, err = client.Generate(t.Context(), "prompt")
	require.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))
	assert.Equal(t, resilience.CircuitStateOpen, client.breaker.State())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_EmptyCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}, resilience.CircuitBreakerConfig{})

	_, err := client.Generate(t.Context(), "prompt")
	require.Error(t, err)
	assert.True(t, crerr.Is(err, ErrEmptyResponse))
	assert.True(t, strings.Contains(err.Error(), "SAFETY"))
}

func TestClient_RejectsEmptyPrompt(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "k"})
	_, err := client.Generate(t.Context(), "  ")
	assert.True(t, errors.Is(err, usecase.ErrInvalidInput))
}
