package oauthcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/oauth-core/instrumentation"
	"github.com/giantswarm/oauth-core/internal/util"
	"github.com/giantswarm/oauth-core/security"
	"github.com/giantswarm/oauth-core/storage"
)

// tokenLogLength is the number of characters of a token value to include in
// logs. Enough uniqueness for debugging without leaking the credential.
const tokenLogLength = 8

// Lifecycle implements the token state machine: issuance, validation,
// refresh rotation, revocation, and expired-token cleanup.
//
// Each operation is short-lived and stateless except for its interaction
// with the TokenStore, so Lifecycle is safe for concurrent use from multiple
// request-handling goroutines without internal locking.
type Lifecycle struct {
	store   storage.TokenStore
	gen     TokenGenerator
	cfg     *Config
	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
	now     func() time.Time

	sweepMu   sync.Mutex
	sweepStop chan struct{}
}

// NewLifecycle creates a token lifecycle backed by the given store.
func NewLifecycle(store storage.TokenStore, config *Config) (*Lifecycle, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	cfg := config.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l := &Lifecycle{
		store:   store,
		gen:     cfg.Generator,
		cfg:     cfg,
		logger:  cfg.Logger,
		auditor: security.NewAuditor(cfg.Logger, cfg.EnableAuditLogging),
		now:     cfg.Now,
	}
	if cfg.Instrumentation != nil {
		l.metrics = cfg.Instrumentation.Metrics()
	}

	return l, nil
}

// Issue creates and persists a fresh token for the given identity.
// parentID links the token to the one it was rotated from; "" for roots.
func (l *Lifecycle) Issue(ctx context.Context, userID int64, scope, parentID string) (*storage.Token, error) {
	now := l.now()
	token := &storage.Token{
		UserID:        userID,
		AccessToken:   l.gen.Generate(),
		RefreshToken:  l.gen.Generate(),
		Scope:         scope,
		AccessExpiry:  now.Add(l.cfg.AccessTokenTTL),
		RefreshExpiry: now.Add(l.cfg.RefreshTokenTTL),
		ParentID:      parentID,
	}

	if _, err := l.store.Create(ctx, token); err != nil {
		return nil, ErrStorage(err)
	}

	l.logger.Debug("Token issued",
		"user_id", userID,
		"scope", scope,
		"access_prefix", util.SafeTruncate(token.AccessToken, tokenLogLength))
	l.auditor.LogTokenIssued(userID, scope)
	if l.metrics != nil {
		l.metrics.TokensIssued.Add(ctx, 1)
	}

	return token, nil
}

// Validate checks a bearer access token and returns its record.
//
// The token must exist, cover every required scope, and be inside its access
// window. A token whose refresh window has also closed is deleted here
// (terminal state); one that is merely access-expired is kept so the refresh
// flow can still use it. If the token is a post-rotation child being used
// for the first time, its parent is deleted and the chain link cleared:
// once the new token is actually presented, the old one's grace window ends.
func (l *Lifecycle) Validate(ctx context.Context, bearerValue string, requiredScopes ...string) (*storage.Token, error) {
	token, err := l.store.FindOne(ctx, storage.Fields{storage.FieldAccessToken: bearerValue})
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			l.auditor.LogAuthFailure("", "unknown_access_token")
			if l.metrics != nil {
				l.metrics.AuthFailures.Add(ctx, 1)
			}
			return nil, ErrInvalidAccessToken("access token is invalid")
		}
		return nil, ErrStorage(err)
	}

	if missing := missingScopes(token.Scope, requiredScopes); len(missing) > 0 {
		l.auditor.LogAuthFailure("", "insufficient_scope")
		return nil, ErrInvalidScope(missing...)
	}

	now := l.now()
	if security.IsExpiredWithGracePeriod(token.RefreshExpiry, now, l.cfg.ClockSkewGracePeriod) {
		// Terminal state: both windows closed, drop the record.
		if err := l.store.Delete(ctx, token.ID); err != nil {
			return nil, ErrStorage(err)
		}
		l.auditor.LogTokenRevoked(token.UserID, "refresh_expired")
		if l.metrics != nil {
			l.metrics.TokensRevoked.Add(ctx, 1)
		}
		return nil, ErrInvalidAccessToken("access token is expired")
	}

	if security.IsExpiredWithGracePeriod(token.AccessExpiry, now, l.cfg.ClockSkewGracePeriod) {
		// Refresh window still open; the record stays for the refresh flow.
		return nil, ErrInvalidAccessToken("access token is expired")
	}

	if token.ParentID != "" {
		// First use of the replacement cuts the old chain irrevocably.
		if err := l.store.Delete(ctx, token.ParentID); err != nil {
			return nil, ErrStorage(err)
		}
		if err := l.store.UpdateFields(ctx, token.ID, storage.Fields{storage.FieldParentID: ""}); err != nil {
			return nil, ErrStorage(err)
		}
		l.logger.Debug("Grace window closed",
			"user_id", token.UserID,
			"parent_id", token.ParentID)
		token.ParentID = ""
	}

	if l.metrics != nil {
		l.metrics.TokensValidated.Add(ctx, 1)
	}

	return token, nil
}

// Rotate exchanges a refresh token for a fresh token carrying the same
// identity and scope.
//
// Under RotateInvalidateImmediately the old token is deleted before the
// replacement is issued. Under RotateWait the old token's refresh window is
// shortened to GraceTTL so it stays usable until the replacement is first
// used, and any stale children from a prior abandoned rotation attempt are
// swept so at most one live child per parent remains.
//
// Store operations are sequenced old-token-mutation-first, new-token-insert
// last: a crash mid-rotation leaves the old token present and no orphan child.
func (l *Lifecycle) Rotate(ctx context.Context, refreshValue string) (*storage.Token, error) {
	old, err := l.store.FindOne(ctx, storage.Fields{storage.FieldRefreshToken: refreshValue})
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			l.auditor.LogAuthFailure("", "unknown_refresh_token")
			if l.metrics != nil {
				l.metrics.AuthFailures.Add(ctx, 1)
			}
			return nil, ErrInvalidRefreshToken("refresh token is invalid")
		}
		return nil, ErrStorage(err)
	}

	now := l.now()
	if security.IsExpiredWithGracePeriod(old.RefreshExpiry, now, l.cfg.ClockSkewGracePeriod) {
		if err := l.store.Delete(ctx, old.ID); err != nil {
			return nil, ErrStorage(err)
		}
		l.auditor.LogTokenRevoked(old.UserID, "refresh_expired")
		if l.metrics != nil {
			l.metrics.TokensRevoked.Add(ctx, 1)
		}
		return nil, ErrInvalidRefreshToken("refresh token is expired")
	}

	var parentID string
	switch l.cfg.RotationPolicy {
	case RotateInvalidateImmediately:
		if err := l.store.Delete(ctx, old.ID); err != nil {
			return nil, ErrStorage(err)
		}

	case RotateWait:
		if err := l.store.UpdateFields(ctx, old.ID, storage.Fields{
			storage.FieldRefreshExpiry: now.Add(l.cfg.GraceTTL),
		}); err != nil {
			return nil, ErrStorage(err)
		}

		// Stale children from an abandoned rotation attempt would break the
		// single-live-child invariant once the new token lands.
		siblings, err := l.store.FindAll(ctx, storage.Fields{storage.FieldParentID: old.ID})
		if err != nil {
			return nil, ErrStorage(err)
		}
		for _, sibling := range siblings {
			if err := l.store.Delete(ctx, sibling.ID); err != nil {
				return nil, ErrStorage(err)
			}
			l.logger.Debug("Swept stale rotation sibling",
				"user_id", sibling.UserID,
				"sibling_id", sibling.ID)
		}
		parentID = old.ID
	}

	token, err := l.Issue(ctx, old.UserID, old.Scope, parentID)
	if err != nil {
		return nil, err
	}

	l.auditor.LogTokenRotated(old.UserID, l.cfg.RotationPolicy == RotateWait)
	if l.metrics != nil {
		l.metrics.TokensRotated.Add(ctx, 1)
	}
	l.logger.Info("Refresh token rotated",
		"user_id", old.UserID,
		"policy", string(l.cfg.RotationPolicy))

	return token, nil
}

// Invalidate unconditionally deletes a token. Invalidating a token that is
// already absent is treated as success, since the end state is satisfied.
func (l *Lifecycle) Invalidate(ctx context.Context, token *storage.Token) error {
	if token == nil {
		return nil
	}

	if err := l.store.Delete(ctx, token.ID); err != nil {
		return ErrStorage(err)
	}

	l.auditor.LogTokenRevoked(token.UserID, "revoked")
	if l.metrics != nil {
		l.metrics.TokensRevoked.Add(ctx, 1)
	}

	return nil
}

// SweepExpired scans all tokens and deletes every one whose refresh window
// has closed. Not required for correctness (Validate and Rotate self-clean
// lazily) but bounds storage growth from abandoned tokens. Returns the
// number of tokens removed.
func (l *Lifecycle) SweepExpired(ctx context.Context) (int, error) {
	tokens, err := l.store.List(ctx)
	if err != nil {
		return 0, ErrStorage(err)
	}

	now := l.now()
	removed := 0
	for _, token := range tokens {
		if !security.IsExpiredWithGracePeriod(token.RefreshExpiry, now, l.cfg.ClockSkewGracePeriod) {
			continue
		}
		if err := l.store.Delete(ctx, token.ID); err != nil {
			return removed, ErrStorage(err)
		}
		removed++
	}

	if removed > 0 {
		l.logger.Info("Swept expired tokens", "removed", removed)
	}
	l.auditor.LogSweepCompleted(removed)
	if l.metrics != nil && removed > 0 {
		l.metrics.TokensSwept.Add(ctx, int64(removed))
	}

	return removed, nil
}

// StartSweeping runs SweepExpired once immediately, then on the configured
// SweepInterval until StopSweeping is called. With a zero interval only the
// initial sweep runs.
func (l *Lifecycle) StartSweeping(ctx context.Context) {
	if _, err := l.SweepExpired(ctx); err != nil {
		l.logger.Warn("Initial token sweep failed", "error", err)
	}

	if l.cfg.SweepInterval <= 0 {
		return
	}

	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()
	if l.sweepStop != nil {
		return // already running
	}
	l.sweepStop = make(chan struct{})
	stop := l.sweepStop

	go func() {
		ticker := time.NewTicker(l.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := l.SweepExpired(ctx); err != nil {
					l.logger.Warn("Token sweep failed", "error", err)
				}
			case <-stop:
				return
			}
		}
	}()
}

// StopSweeping stops the background sweep timer, if running.
func (l *Lifecycle) StopSweeping() {
	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()
	if l.sweepStop != nil {
		close(l.sweepStop)
		l.sweepStop = nil
	}
}
