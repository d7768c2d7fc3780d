package security

import "time"

const (
	// DefaultClockSkewGracePeriod is a grace period for token expiration
	// checks that tolerates time synchronization drift between systems.
	// The lifecycle core defaults to 0 (exact expiry); deployments that
	// see NTP drift between the issuer and resource servers can widen it.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks if a timestamp has passed as of now, with no grace period.
func IsExpired(expiresAt, now time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, now, 0)
}

// IsExpiredWithGracePeriod checks if a timestamp has passed as of now,
// treating it as still valid for gracePeriod beyond the nominal expiry.
// A zero expiresAt means no expiration.
func IsExpiredWithGracePeriod(expiresAt, now time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt.Add(gracePeriod))
}

// IsExpiringSoon checks if a timestamp will pass within the given threshold.
func IsExpiringSoon(expiresAt, now time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.Add(threshold).After(expiresAt)
}
