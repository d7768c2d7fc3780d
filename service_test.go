package oauthcore

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/giantswarm/oauth-core/internal/testutil"
)

// fakeRequest is a map-backed Request for tests.
type fakeRequest struct {
	method  string
	path    string
	headers map[string]string
	params  map[string]string
}

func (r *fakeRequest) Method() string           { return r.method }
func (r *fakeRequest) Path() string             { return r.path }
func (r *fakeRequest) Header(name string) string { return r.headers[name] }
func (r *fakeRequest) Param(name string) string  { return r.params[name] }

func tokenRequest(params map[string]string) *fakeRequest {
	return &fakeRequest{
		method:  "POST",
		path:    "/oauth/token",
		headers: map[string]string{},
		params:  params,
	}
}

func allowAllClients(ctx context.Context, grantType, clientID, clientSecret string) bool {
	return true
}

func setupService(t *testing.T, config *Config) (*Service, *Lifecycle, *testutil.MockClock) {
	t.Helper()
	lc, _, clock := setupLifecycle(t, config)
	svc, err := NewService(lc)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, lc, clock
}

func TestNewService_RequiresLifecycle(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil lifecycle")
	}
}

func TestService_IssueToken_MissingGrantType(t *testing.T) {
	ctx := context.Background()
	lc, store, _ := setupLifecycle(t, nil)
	svc, err := NewService(lc)
	testutil.AssertNoError(t, err)
	defer svc.Close()

	_, err = svc.IssueToken(ctx, tokenRequest(map[string]string{
		"client_id":     "app",
		"client_secret": "secret",
	}), allowAllClients, nil)

	authErr := assertAuthError(t, err, ErrorCodeInvalidRequest, 400)
	if len(authErr.Missing) != 1 || authErr.Missing[0] != "grant_type" {
		t.Errorf("Missing = %v, want [grant_type]", authErr.Missing)
	}

	// Request was rejected before any store write.
	testutil.AssertEqual(t, store.Len(), 0)
}

func TestService_IssueToken_ClientCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, nil)

	resp, err := svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type":    GrantClientCredentials,
		"client_id":     "app",
		"client_secret": "secret",
		"scope":         "reports",
	}), allowAllClients, nil)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, resp.TokenType, TokenTypeBearer)
	testutil.AssertEqual(t, resp.Scope, "reports")
	testutil.AssertEqual(t, resp.ExpiresIn, int64(DefaultAccessTokenTTL.Seconds()))
	testutil.AssertTrue(t, resp.AccessToken != "", "access token must be set")
	testutil.AssertTrue(t, resp.RefreshToken != "", "refresh token must be set")

	// Client-only grant: the token carries no resource owner.
	token, err := svc.Lifecycle().Validate(ctx, resp.AccessToken)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token.UserID, int64(0))
}

func TestService_IssueToken_InvalidClient(t *testing.T) {
	ctx := context.Background()
	lc, store, _ := setupLifecycle(t, nil)
	svc, err := NewService(lc)
	testutil.AssertNoError(t, err)
	defer svc.Close()

	denyAll := func(ctx context.Context, grantType, clientID, clientSecret string) bool {
		return false
	}

	_, err = svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type":    GrantClientCredentials,
		"client_id":     "app",
		"client_secret": "wrong",
	}), denyAll, nil)
	assertAuthError(t, err, ErrorCodeInvalidClient, 400)
	testutil.AssertEqual(t, store.Len(), 0)

	// Nil authenticator rejects everything.
	_, err = svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type": GrantClientCredentials,
	}), nil, nil)
	assertAuthError(t, err, ErrorCodeInvalidClient, 400)
}

func TestService_IssueToken_BasicHeaderPrecedence(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, nil)

	var gotID, gotSecret string
	clientAuth := func(ctx context.Context, grantType, clientID, clientSecret string) bool {
		gotID, gotSecret = clientID, clientSecret
		return true
	}

	req := tokenRequest(map[string]string{
		"grant_type":    GrantClientCredentials,
		"client_id":     "form-client",
		"client_secret": "form-secret",
	})
	req.headers["Authorization"] = "Basic " +
		base64.StdEncoding.EncodeToString([]byte("header-client:header-secret"))

	_, err := svc.IssueToken(ctx, req, clientAuth, nil)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, gotID, "header-client")
	testutil.AssertEqual(t, gotSecret, "header-secret")
}

func TestService_IssueToken_PasswordGrant(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, nil)

	userAuth := func(ctx context.Context, username, password string) (int64, bool) {
		if username == "alice" && password == "wonderland" {
			return 42, true
		}
		return 0, false
	}

	resp, err := svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type": GrantPassword,
		"username":   "alice",
		"password":   "wonderland",
		"scope":      "profile",
	}), allowAllClients, userAuth)
	testutil.AssertNoError(t, err)

	token, err := svc.Lifecycle().Validate(ctx, resp.AccessToken)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token.UserID, int64(42))
	testutil.AssertEqual(t, token.Scope, "profile")
}

func TestService_IssueToken_PasswordGrant_BadCredentials(t *testing.T) {
	ctx := context.Background()
	lc, store, _ := setupLifecycle(t, nil)
	svc, err := NewService(lc)
	testutil.AssertNoError(t, err)
	defer svc.Close()

	userAuth := func(ctx context.Context, username, password string) (int64, bool) {
		return 0, false
	}

	_, err = svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type": GrantPassword,
		"username":   "alice",
		"password":   "nope",
	}), allowAllClients, userAuth)
	assertAuthError(t, err, ErrorCodeInvalidGrant, 400)
	testutil.AssertEqual(t, store.Len(), 0)

	// No user authenticator wired at all: same rejection.
	_, err = svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type": GrantPassword,
		"username":   "alice",
		"password":   "wonderland",
	}), allowAllClients, nil)
	assertAuthError(t, err, ErrorCodeInvalidGrant, 400)
}

func TestService_IssueToken_PasswordGrant_MissingParams(t *testing.T) {
	svc, _, _ := setupService(t, nil)

	tests := []struct {
		name    string
		params  map[string]string
		missing []string
	}{
		{
			name:    "no username",
			params:  map[string]string{"grant_type": GrantPassword, "password": "x"},
			missing: []string{"username"},
		},
		{
			name:    "no password",
			params:  map[string]string{"grant_type": GrantPassword, "username": "alice"},
			missing: []string{"password"},
		},
		{
			name:    "neither",
			params:  map[string]string{"grant_type": GrantPassword},
			missing: []string{"username", "password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IssueToken(context.Background(), tokenRequest(tt.params), allowAllClients, nil)
			authErr := assertAuthError(t, err, ErrorCodeInvalidRequest, 400)
			if len(authErr.Missing) != len(tt.missing) {
				t.Fatalf("Missing = %v, want %v", authErr.Missing, tt.missing)
			}
			for i := range tt.missing {
				testutil.AssertEqual(t, authErr.Missing[i], tt.missing[i])
			}
		})
	}
}

func TestService_IssueToken_RefreshGrant(t *testing.T) {
	ctx := context.Background()
	svc, lc, _ := setupService(t, nil)

	original, err := lc.Issue(ctx, 7, "profile", "")
	testutil.AssertNoError(t, err)

	resp, err := svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type":    GrantRefreshToken,
		"refresh_token": original.RefreshToken,
	}), allowAllClients, nil)
	testutil.AssertNoError(t, err)

	testutil.AssertNotEqual(t, resp.AccessToken, original.AccessToken)
	testutil.AssertEqual(t, resp.Scope, "profile")

	token, err := lc.Validate(ctx, resp.AccessToken)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token.UserID, int64(7))
}

func TestService_IssueToken_RefreshGrant_MissingParam(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, nil)

	_, err := svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type": GrantRefreshToken,
	}), allowAllClients, nil)
	authErr := assertAuthError(t, err, ErrorCodeInvalidRequest, 400)
	if len(authErr.Missing) != 1 || authErr.Missing[0] != "refresh_token" {
		t.Errorf("Missing = %v, want [refresh_token]", authErr.Missing)
	}
}

func TestService_IssueToken_UnsupportedGrants(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, nil)

	for _, grantType := range []string{GrantAuthorizationCode, "device_code", "implicit"} {
		_, err := svc.IssueToken(ctx, tokenRequest(map[string]string{
			"grant_type": grantType,
		}), allowAllClients, nil)
		assertAuthError(t, err, ErrorCodeUnsupportedGrantType, 400)
	}
}

func TestService_IssueToken_RateLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, &Config{
		RateLimit: RateLimitConfig{Rate: 1, Burst: 1},
	})

	params := map[string]string{
		"grant_type": GrantClientCredentials,
		"client_id":  "busy-client",
	}

	_, err := svc.IssueToken(ctx, tokenRequest(params), allowAllClients, nil)
	testutil.AssertNoError(t, err)

	_, err = svc.IssueToken(ctx, tokenRequest(params), allowAllClients, nil)
	assertAuthError(t, err, ErrorCodeRateLimitExceeded, 429)

	// Separate clients have separate buckets.
	_, err = svc.IssueToken(ctx, tokenRequest(map[string]string{
		"grant_type": GrantClientCredentials,
		"client_id":  "other-client",
	}), allowAllClients, nil)
	testutil.AssertNoError(t, err)
}

func TestService_AuthorizeRequest(t *testing.T) {
	ctx := context.Background()
	svc, lc, _ := setupService(t, nil)

	issued, err := lc.Issue(ctx, 7, "profile email", "")
	testutil.AssertNoError(t, err)

	req := &fakeRequest{
		method:  "GET",
		path:    "/api/profile",
		headers: map[string]string{"Authorization": "Bearer " + issued.AccessToken},
		params:  map[string]string{},
	}

	token, err := svc.AuthorizeRequest(ctx, req, "profile")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token.UserID, int64(7))

	_, err = svc.AuthorizeRequest(ctx, req, "admin")
	assertAuthError(t, err, ErrorCodeInvalidScope, 400)
}

func TestService_AuthorizeRequest_MalformedHeader(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"scheme only", "Bearer"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"value with spaces", "Bearer abc def"},
		{"trailing space", "Bearer abc "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &fakeRequest{
				method:  "GET",
				path:    "/api/profile",
				headers: map[string]string{"Authorization": tt.header},
				params:  map[string]string{},
			}
			_, err := svc.AuthorizeRequest(ctx, req)
			assertAuthError(t, err, ErrorCodeAccessDenied, 401)
		})
	}
}
