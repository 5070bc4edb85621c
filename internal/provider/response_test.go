package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseHasError(t *testing.T) {
	assert.False(t, OKResponse(nil).HasError())
	assert.True(t, ErrorResponse(nil, "boom").HasError())
	assert.True(t, UnauthorizedResponse().HasError())
	assert.True(t, RateLimitResponse(time.Minute, false).HasError())
}

func TestResponseContextNeverNil(t *testing.T) {
	assert.NotNil(t, OKResponse(nil).Context())
	assert.NotNil(t, NewResponse(StatusError, nil).Context())
	assert.NotNil(t, Response{}.Context())
}

func TestUnauthorizedResponseContext(t *testing.T) {
	resp := UnauthorizedResponse()
	assert.True(t, resp.IsUnauthorized())
	assert.Equal(t, []string{"access_token_expired"}, resp.Context())
}

func TestRateLimitResponse(t *testing.T) {
	resp := RateLimitResponse(90*time.Second, true)
	require.True(t, resp.IsRateLimited())
	assert.True(t, resp.IsAppLevel())
	assert.Equal(t, 90*time.Second, resp.RetryAfter())

	ctx, ok := resp.Context().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(90), ctx["retry_after"])
}

func TestResponseID(t *testing.T) {
	resp := OKResponse(map[string]any{"id": "17890123"})
	assert.Equal(t, "17890123", resp.ID())

	assert.Empty(t, OKResponse([]string{"no", "map"}).ID())
	assert.Empty(t, OKResponse(map[string]any{"id": 42}).ID())
}

func TestResponseEntities(t *testing.T) {
	entities := []Entity{{ID: "1", Name: "Page One"}}
	assert.Equal(t, entities, OKResponse(entities).Entities())
	assert.Nil(t, OKResponse(map[string]any{}).Entities())
}
