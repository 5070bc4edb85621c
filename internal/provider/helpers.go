package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/maheshrc27/postbridge/internal/models"
)

// errTransientPoll marks a fetch attempt that should not terminate a poll
// loop: the attempt is consumed and the loop continues.
var errTransientPoll = errors.New("transient poll failure")

func isProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}

func errRefreshUnsupported(provider string) error {
	return fmt.Errorf("%s: token refresh not supported", provider)
}

func tokenExchangeError(provider string, resp *resty.Response) error {
	return fmt.Errorf("%s: token exchange failed: %s: %s", provider, resp.Status(), string(resp.Body()))
}

// decodeInto unmarshals a response body, tolerating malformed payloads.
// Callers check for zero values instead of handling a decode error on every
// provider call.
func decodeInto(body []byte, dest any) {
	_ = json.Unmarshal(body, dest)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func expiresInValue(token models.AccessToken, fallback int64) int64 {
	if v, ok := token.ExpiresIn(); ok {
		return v
	}
	return fallback
}
