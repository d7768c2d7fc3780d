package oauthcore

import (
	"time"

	"github.com/giantswarm/oauth-core/storage"
)

// TokenTypeBearer is the token_type reported in every token response.
const TokenTypeBearer = "bearer"

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	// AccessToken is the access token
	AccessToken string `json:"access_token"`

	// RefreshToken is the refresh token
	RefreshToken string `json:"refresh_token"`

	// ExpiresIn is the remaining lifetime of the access token in seconds.
	// It may be negative if the token is already expired.
	ExpiresIn int64 `json:"expires_in"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// Scope is the space-delimited scope of the access token.
	// Omitted entirely when the token is unscoped.
	Scope string `json:"scope,omitempty"`
}

// NewTokenResponse builds the wire representation of an issued token as of
// the given time.
func NewTokenResponse(token *storage.Token, now time.Time) *TokenResponse {
	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    int64(token.AccessExpiry.Sub(now) / time.Second),
		TokenType:    TokenTypeBearer,
		Scope:        token.Scope,
	}
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}
