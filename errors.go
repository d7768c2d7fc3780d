package oauthcore

import (
	"fmt"
	"net/http"
	"strings"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeServerError          = "server_error"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
)

// AuthError represents an OAuth 2.0 error response
type AuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	Status      int    // HTTP status code

	// Missing lists every absent parameter or uncovered scope behind an
	// invalid_request or invalid_scope error, not just the first.
	Missing []string

	err error // wrapped cause, set for storage failures
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap returns the wrapped cause, if any
func (e *AuthError) Unwrap() error {
	return e.err
}

// Response returns the wire representation of the error
func (e *AuthError) Response() ErrorResponse {
	return ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	}
}

// NewAuthError creates a new auth error
func NewAuthError(code, description string, status int) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common auth errors as reusable constructors
var (
	// ErrInvalidClient indicates client authentication failed or client
	// credentials are missing or malformed
	ErrInvalidClient = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidClient, desc, http.StatusBadRequest)
	}

	// ErrMissingParameters indicates required grant parameters are absent.
	// Every missing name is reported, not just the first.
	ErrMissingParameters = func(params ...string) *AuthError {
		e := NewAuthError(ErrorCodeInvalidRequest,
			fmt.Sprintf("missing required parameter(s): %s", strings.Join(params, ", ")),
			http.StatusBadRequest)
		e.Missing = params
		return e
	}

	// ErrUnsupportedGrantType indicates the grant type is unknown or not supported
	ErrUnsupportedGrantType = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
	}

	// ErrInvalidUsernamePassword indicates the resource-owner credentials
	// were rejected by the user authenticator
	ErrInvalidUsernamePassword = func() *AuthError {
		return NewAuthError(ErrorCodeInvalidGrant, "invalid username or password", http.StatusBadRequest)
	}

	// ErrInvalidAccessToken indicates the bearer access token is unknown or expired
	ErrInvalidAccessToken = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidGrant, desc, http.StatusUnauthorized)
	}

	// ErrInvalidRefreshToken indicates the refresh token is unknown or expired
	ErrInvalidRefreshToken = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrAccessDenied indicates the bearer header is missing or malformed
	ErrAccessDenied = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeAccessDenied, desc, http.StatusUnauthorized)
	}

	// ErrInvalidScope indicates the token's scope set does not cover the
	// required scopes. The uncovered scopes are listed in Missing.
	ErrInvalidScope = func(scopes ...string) *AuthError {
		e := NewAuthError(ErrorCodeInvalidScope,
			fmt.Sprintf("token scope does not cover: %s", strings.Join(scopes, ", ")),
			http.StatusBadRequest)
		e.Missing = scopes
		return e
	}

	// ErrRateLimitExceeded indicates the client exceeded the token endpoint
	// rate limit
	ErrRateLimitExceeded = func() *AuthError {
		return NewAuthError(ErrorCodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests)
	}
)

// ErrStorage wraps a storage-layer failure (connectivity, constraint
// violation) as an opaque server error. The core never retries store
// operations; retry policy is a collaborator concern.
func ErrStorage(err error) *AuthError {
	e := NewAuthError(ErrorCodeServerError, "storage operation failed", http.StatusInternalServerError)
	e.err = err
	return e
}
