package oauthcore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giantswarm/oauth-core/instrumentation"
	"github.com/giantswarm/oauth-core/security"
	"github.com/giantswarm/oauth-core/storage"
)

// Service orchestrates client authentication, grant processing, and the
// token lifecycle. It is the entry point HTTP collaborators call from their
// /oauth/token handler (IssueToken) and from protected routes
// (AuthorizeRequest).
type Service struct {
	lifecycle *Lifecycle
	cfg       *Config
	logger    *slog.Logger
	auditor   *security.Auditor
	metrics   *instrumentation.Metrics
	limiter   *security.RateLimiter
}

// NewService creates an authorization service around a token lifecycle.
func NewService(lifecycle *Lifecycle) (*Service, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("lifecycle is required")
	}

	s := &Service{
		lifecycle: lifecycle,
		cfg:       lifecycle.cfg,
		logger:    lifecycle.logger,
		auditor:   lifecycle.auditor,
		metrics:   lifecycle.metrics,
	}
	if s.cfg.RateLimit.Rate > 0 {
		s.limiter = security.NewRateLimiter(s.cfg.RateLimit.Rate, s.cfg.RateLimit.Burst, s.logger)
	}

	return s, nil
}

// Lifecycle returns the underlying token lifecycle, for callers that need
// direct Issue/Invalidate/Sweep access.
func (s *Service) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// Close stops the service's background goroutines (rate limiter cleanup and
// the sweep timer, if running).
func (s *Service) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.lifecycle.StopSweeping()
}

// IssueToken handles a token request: authenticates the client, resolves the
// grant, and issues (or rotates to) a token. Client credentials come from a
// Basic Authorization header or from the client_id/client_secret form
// fields; the header takes precedence if both are present.
//
// No store writes happen before the request is fully validated and the
// client authenticated.
func (s *Service) IssueToken(ctx context.Context, req Request, clientAuth ClientAuthenticator, userAuth UserAuthenticator) (*TokenResponse, error) {
	grantType := req.Param("grant_type")
	if grantType == "" {
		return nil, ErrMissingParameters("grant_type")
	}

	clientID, clientSecret := clientCredentials(req)

	if s.limiter != nil && clientID != "" && !s.limiter.Allow(clientID) {
		s.auditor.LogRateLimitExceeded(clientID)
		if s.metrics != nil {
			s.metrics.RateLimitExceeded.Add(ctx, 1)
		}
		return nil, ErrRateLimitExceeded()
	}

	if clientAuth == nil || !clientAuth(ctx, grantType, clientID, clientSecret) {
		s.auditor.LogAuthFailure(clientID, "client_authentication_failed")
		if s.metrics != nil {
			s.metrics.AuthFailures.Add(ctx, 1)
		}
		return nil, ErrInvalidClient("client authentication failed")
	}

	result, err := s.resolveGrant(ctx, req, grantType, userAuth)
	if err != nil {
		return nil, err
	}

	token := result.token
	if token == nil {
		token, err = s.lifecycle.Issue(ctx, result.userID, result.scope, "")
		if err != nil {
			return nil, err
		}
	}

	return NewTokenResponse(token, s.lifecycle.now()), nil
}

// AuthorizeRequest validates the bearer token on an incoming resource
// request and returns its record. The Authorization header must carry
// exactly "Bearer <value>"; any other shape is rejected with access_denied
// before the store is consulted.
func (s *Service) AuthorizeRequest(ctx context.Context, req Request, requiredScopes ...string) (*storage.Token, error) {
	bearer, ok := bearerToken(req.Header("Authorization"))
	if !ok {
		s.auditor.LogAuthFailure("", "malformed_bearer_header")
		if s.metrics != nil {
			s.metrics.AuthFailures.Add(ctx, 1)
		}
		return nil, ErrAccessDenied("missing or malformed bearer token")
	}

	return s.lifecycle.Validate(ctx, bearer, requiredScopes...)
}
