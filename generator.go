package oauthcore

import "golang.org/x/oauth2"

// TokenGenerator produces the opaque credential material for access and
// refresh tokens. Values must be unpredictable, fixed-length, and unique.
// Injected so tests can substitute deterministic generators.
type TokenGenerator interface {
	Generate() string
}

// RandomGenerator generates cryptographically secure, URL-safe token values.
type RandomGenerator struct{}

// Generate returns a fresh random token value. Uses the same method as
// oauth2.GenerateVerifier for consistency: 32 bytes of crypto/rand entropy,
// base64url-encoded to a fixed 43 characters.
func (RandomGenerator) Generate() string {
	return oauth2.GenerateVerifier()
}
