package oauthcore

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Request is the incoming-request capability the core consumes. It keeps
// HTTP servers, routers, and request parsing out of the token logic; any
// transport that can answer these four questions can drive the service.
type Request interface {
	// Method returns the request method (e.g., "POST")
	Method() string

	// Path returns the request path (e.g., "/oauth/token")
	Path() string

	// Header returns the first value of the named header, or ""
	Header(name string) string

	// Param returns the named form or query parameter, or ""
	Param(name string) string
}

// HTTPRequest adapts *http.Request to the Request capability.
type HTTPRequest struct {
	r *http.Request
}

// NewHTTPRequest wraps a net/http request
func NewHTTPRequest(r *http.Request) *HTTPRequest {
	return &HTTPRequest{r: r}
}

// Method returns the request method
func (h *HTTPRequest) Method() string {
	return h.r.Method
}

// Path returns the request URL path
func (h *HTTPRequest) Path() string {
	return h.r.URL.Path
}

// Header returns the first value of the named header
func (h *HTTPRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

// Param returns the named form or query parameter. Body parameters take
// precedence over query parameters, matching net/http form semantics.
func (h *HTTPRequest) Param(name string) string {
	return h.r.FormValue(name)
}

// bearerToken extracts the credential from an Authorization header value.
// The header must be exactly one scheme and one value separated by a single
// space, with the Bearer scheme; any other shape is rejected.
func bearerToken(header string) (string, bool) {
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	if value == "" || strings.ContainsRune(value, ' ') {
		return "", false
	}
	return value, true
}

// basicAuth decodes client credentials from a Basic Authorization header value.
func basicAuth(header string) (clientID, clientSecret string, ok bool) {
	scheme, encoded, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	clientID, clientSecret, ok = strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}
	return clientID, clientSecret, true
}

// clientCredentials resolves client credentials from the request. A Basic
// Authorization header takes precedence over form fields when both are present.
func clientCredentials(req Request) (clientID, clientSecret string) {
	if id, secret, ok := basicAuth(req.Header("Authorization")); ok {
		return id, secret
	}
	return req.Param("client_id"), req.Param("client_secret")
}
