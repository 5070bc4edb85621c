package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateCodecRoundTrip(t *testing.T) {
	codec := NewStateCodec("test-secret", time.Hour)

	payload := StatePayload{
		ReturnURL: "https://app.example.com/accounts",
		OrgID:     "42",
		UserID:    "7",
		Client:    "extension",
	}

	state, err := codec.Encode(payload)
	require.NoError(t, err)

	decoded, err := codec.Decode(state)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestStateCodecRejectsTampering(t *testing.T) {
	codec := NewStateCodec("test-secret", time.Hour)

	state, err := codec.Encode(StatePayload{ReturnURL: "https://app.example.com"})
	require.NoError(t, err)

	_, err = codec.Decode(state + "x")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateCodecRejectsWrongSecret(t *testing.T) {
	signer := NewStateCodec("secret-a", time.Hour)
	verifier := NewStateCodec("secret-b", time.Hour)

	state, err := signer.Encode(StatePayload{ReturnURL: "https://app.example.com"})
	require.NoError(t, err)

	_, err = verifier.Decode(state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateCodecRejectsExpired(t *testing.T) {
	codec := NewStateCodec("test-secret", -time.Minute)

	state, err := codec.Encode(StatePayload{ReturnURL: "https://app.example.com"})
	require.NoError(t, err)

	_, err = codec.Decode(state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestIsCrossDomainState(t *testing.T) {
	codec := NewStateCodec("test-secret", time.Hour)

	state, err := codec.Encode(StatePayload{ReturnURL: "https://app.example.com"})
	require.NoError(t, err)
	assert.True(t, IsCrossDomainState(state))

	assert.False(t, IsCrossDomainState("kM2zX9qL3pW8vT1rY6nB4cD7fG0hJ5sA2eU9iO6pQ3wE8rT1yV4bN7mK0xZ5cH2j"))
	assert.False(t, IsCrossDomainState(""))
	assert.False(t, IsCrossDomainState("a.b"))
	assert.False(t, IsCrossDomainState("not.a.jwt"))
}
