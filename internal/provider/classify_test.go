package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchResponse(t *testing.T, handler http.HandlerFunc) *resty.Response {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	resp, err := resty.New().R().Get(server.URL)
	require.NoError(t, err)
	return resp
}

func TestBuildResponseOK(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"123","permalink":"https://example.com/p/123"}`))
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusOK, result.Status())
	assert.Equal(t, "123", result.ID())
}

func TestBuildResponseOKTransform(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"publish_id":"v2.123"}}`))
	})

	result := buildResponse(resp, func() any {
		return map[string]any{"id": "v2.123"}
	})
	require.Equal(t, StatusOK, result.Status())
	assert.Equal(t, "v2.123", result.ID())
}

func TestBuildResponseNoContent(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusOK, result.Status())
	assert.False(t, result.HasError())
}

func TestBuildResponseRateLimitHeader(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusExceededRateLimit, result.Status())
	assert.Equal(t, 120*time.Second, result.RetryAfter())
	assert.False(t, result.IsAppLevel())
}

func TestBuildResponseRateLimitDefault(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusExceededRateLimit, result.Status())
	assert.Equal(t, defaultRetryAfter, result.RetryAfter())
}

func TestBuildResponseUnauthorized(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusUnauthorized, result.Status())
	assert.Equal(t, []string{"access_token_expired"}, result.Context())
}

func TestBuildResponseError(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"server exploded"}}`))
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusError, result.Status())

	ctx, ok := result.Context().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, ctx, "error")
}

func TestBuildResponseErrorNonJSONBody(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	})

	result := buildResponse(resp, nil)
	require.Equal(t, StatusError, result.Status())

	ctx, ok := result.Context().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upstream timeout", ctx["body"])
}

func TestBuildQuotaResponseQuotaExceeded(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"errors":[{"reason":"quotaExceeded"}]}}`))
	})

	result := buildQuotaResponse(resp, nil)
	require.Equal(t, StatusExceededRateLimit, result.Status())
	assert.True(t, result.IsAppLevel())
}

func TestBuildQuotaResponsePlainForbidden(t *testing.T) {
	resp := fetchResponse(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"errors":[{"reason":"insufficientPermissions"}]}}`))
	})

	result := buildQuotaResponse(resp, nil)
	assert.Equal(t, StatusError, result.Status())
}
