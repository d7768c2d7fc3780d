package oauthcore

import (
	"context"

	"github.com/giantswarm/oauth-core/storage"
)

// Grant type identifiers from RFC 6749
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantAuthorizationCode = "authorization_code"
)

// ClientAuthenticator validates client credentials for a grant type.
// Supplied by the caller; typically ClientRegistry.Authenticator, but any
// predicate works.
type ClientAuthenticator func(ctx context.Context, grantType, clientID, clientSecret string) bool

// UserAuthenticator resolves resource-owner credentials to a user ID.
// Returns false when the credentials are rejected. Only consulted for the
// password grant.
type UserAuthenticator func(ctx context.Context, username, password string) (int64, bool)

// grantResult is the identity a grant resolves to. When the grant itself
// already produced a token (refresh_token rotates instead of issuing anew),
// token is set and the identity fields are unused.
type grantResult struct {
	userID int64
	scope  string
	token  *storage.Token
}

// resolveGrant runs the per-grant-type logic for an already-authenticated
// client and resolves the identity to issue for.
func (s *Service) resolveGrant(ctx context.Context, req Request, grantType string, userAuth UserAuthenticator) (*grantResult, error) {
	switch grantType {
	case GrantClientCredentials:
		// No resource owner; the token is bound to the client alone.
		return &grantResult{userID: 0, scope: req.Param("scope")}, nil

	case GrantPassword:
		username := req.Param("username")
		password := req.Param("password")
		var missing []string
		if username == "" {
			missing = append(missing, "username")
		}
		if password == "" {
			missing = append(missing, "password")
		}
		if len(missing) > 0 {
			return nil, ErrMissingParameters(missing...)
		}
		if userAuth == nil {
			return nil, ErrInvalidUsernamePassword()
		}
		userID, ok := userAuth(ctx, username, password)
		if !ok {
			s.auditor.LogAuthFailure("", "invalid_user_credentials")
			return nil, ErrInvalidUsernamePassword()
		}
		return &grantResult{userID: userID, scope: req.Param("scope")}, nil

	case GrantRefreshToken:
		refreshValue := req.Param("refresh_token")
		if refreshValue == "" {
			return nil, ErrMissingParameters("refresh_token")
		}
		token, err := s.lifecycle.Rotate(ctx, refreshValue)
		if err != nil {
			return nil, err
		}
		return &grantResult{token: token}, nil

	case GrantAuthorizationCode:
		// Declared so it maps to a stable error instead of the unknown-grant
		// case; the authorization-code flow is not implemented here.
		return nil, ErrUnsupportedGrantType("authorization_code grant is not implemented")

	default:
		return nil, ErrUnsupportedGrantType("unknown grant type: " + grantType)
	}
}
