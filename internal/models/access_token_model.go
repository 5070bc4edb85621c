package models

import (
	"encoding/json"
	"time"
)

// AccessToken is the opaque provider-specific token bag. Providers return
// different shapes (refresh_token, expires_in, open_id, page_access_token,
// oauth_token_secret...), so the bag stays schemaless and is replaced or
// merged wholesale, never partially mutated.
type AccessToken map[string]any

func (t AccessToken) Token() string {
	return t.str("access_token")
}

func (t AccessToken) RefreshToken() string {
	return t.str("refresh_token")
}

func (t AccessToken) ExpiresIn() (int64, bool) {
	v, ok := t["expires_in"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func (t AccessToken) ExpiresAt() (time.Time, bool) {
	s := t.str("expires_at")
	if s == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func (t AccessToken) SetExpiresAt(at time.Time) {
	t["expires_at"] = at.UTC().Format(time.RFC3339)
}

// Merge returns a new bag with fields from other overwriting fields of t.
// Fields absent from other are preserved, which is what keeps provider
// extras like open_id alive across refreshes.
func (t AccessToken) Merge(other AccessToken) AccessToken {
	merged := make(AccessToken, len(t)+len(other))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

func (t AccessToken) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeAccessToken(raw []byte) (AccessToken, error) {
	var t AccessToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return t, nil
}

func (t AccessToken) str(key string) string {
	if v, ok := t[key].(string); ok {
		return v
	}
	return ""
}
