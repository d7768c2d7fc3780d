// Package oauthcore implements the token lifecycle core of an OAuth2-style
// authorization layer for resource servers: issuing bearer tokens across the
// client_credentials, password, and refresh_token grant flows, validating
// bearer tokens on incoming requests, rotating refresh tokens with an
// optional grace window, and revoking tokens.
//
// The package is HTTP-framework agnostic. Callers adapt their transport to
// the Request capability, render TokenResponse/AuthError values to the wire,
// and supply client/user verification as predicate functions. Persistence is
// abstracted behind storage.TokenStore.
package oauthcore
