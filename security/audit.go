package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    int64
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs when a token is issued
func (a *Auditor) LogTokenIssued(userID int64, scope string) {
	a.LogEvent(Event{
		Type:   "token_issued",
		UserID: userID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenRotated logs when a refresh token is rotated
func (a *Auditor) LogTokenRotated(userID int64, graceWindow bool) {
	a.LogEvent(Event{
		Type:   "token_rotated",
		UserID: userID,
		Details: map[string]any{
			"grace_window": graceWindow,
		},
	})
}

// LogTokenRevoked logs when a token is revoked or expires terminally
func (a *Auditor) LogTokenRevoked(userID int64, reason string) {
	a.LogEvent(Event{
		Type:   "token_revoked",
		UserID: userID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAuthFailure logs an authentication or validation failure
func (a *Auditor) LogAuthFailure(clientID, reason string) {
	a.LogEvent(Event{
		Type:     "auth_failure",
		ClientID: clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(clientID string) {
	a.LogEvent(Event{
		Type:     "rate_limit_exceeded",
		ClientID: clientID,
	})
}

// LogSweepCompleted logs the outcome of an expired-token sweep
func (a *Auditor) LogSweepCompleted(removed int) {
	a.LogEvent(Event{
		Type: "sweep_completed",
		Details: map[string]any{
			"removed": removed,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(userID int64) string {
	if userID == 0 {
		return "<none>"
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d", userID)))
	return hex.EncodeToString(hash[:])[:16]
}
