// Package security provides security features for the token lifecycle core:
// audit logging with PII protection, per-identifier rate limiting, and
// clock-skew-aware expiry checks.
package security
