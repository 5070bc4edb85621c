package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const singleUseTokenLength = 64

// SingleUseToken generates the 64-character key used for handoff and
// entity-selection cache entries.
func SingleUseToken() (string, error) {
	return gonanoid.New(singleUseTokenLength)
}

// UUID generates a short unique id for new accounts.
func UUID() (string, error) {
	return gonanoid.New()
}
