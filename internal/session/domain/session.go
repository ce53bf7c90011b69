package domain

import "time"

// State is the derived lifecycle state of a session.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

// Session represents one authenticated client context: one row per login or registration.
// Refresh mutates ExpiresAt and LastUsed on the same row.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string // SHA-256 hex of the refresh secret; the secret itself is never stored
	UserAgent        string
	IPAddress        string
	ExpiresAt        time.Time // access window end
	RefreshExpiresAt time.Time
	IsActive         bool
	CreatedAt        time.Time
	LastUsed         time.Time
}

// State derives the session state at now. Expiry is never written; only deactivation is.
func (s *Session) State(now time.Time) State {
	switch {
	case !s.IsActive:
		return StateRevoked
	case !now.Before(s.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}

// AccessValid reports whether the session can back an access token at now.
func (s *Session) AccessValid(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// RefreshValid reports whether the session's refresh secret can be redeemed at now.
func (s *Session) RefreshValid(now time.Time) bool {
	return s.IsActive && now.Before(s.RefreshExpiresAt)
}

// Metadata is the client context captured at login.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// SweepResult reports what one sweep pass changed.
type SweepResult struct {
	Deleted     int64
	Deactivated int64
}
