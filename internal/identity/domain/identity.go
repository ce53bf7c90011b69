// Package domain holds the auth outcomes and error taxonomy of the session manager.
package domain

import (
	"errors"
	"time"

	sessiondomain "voice-journal/backend/internal/session/domain"
	userdomain "voice-journal/backend/internal/user/domain"
)

// Auth failures. Each one is reported to clients without further detail.
var (
	// ErrInvalidCredentials is returned for an unknown email, a wrong password or an inactive principal.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers every bearer token problem: missing, malformed, expired, wrong type,
	// inactive or expired session, inactive or missing principal.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidRefreshToken is returned when the refresh cookie is missing or no live session matches it.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrPersistence wraps any ledger or principal store failure. It is a server fault.
	ErrPersistence = errors.New("persistence failure")
)

// Registration conflicts share the repository sentinels so errors.Is works across layers.
var (
	ErrEmailAlreadyRegistered = userdomain.ErrEmailTaken
	ErrUsernameTaken          = userdomain.ErrUsernameTaken
)

// AuthResult is the outcome of Login and Register. RefreshToken is the raw secret; it leaves
// the process only in the refresh cookie.
type AuthResult struct {
	User         *userdomain.User
	Session      *sessiondomain.Session
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the exp of AccessToken.
	ExpiresAt time.Time
}

// RefreshResult is the outcome of Refresh: a new access token bound to the same session.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
	UserID      string
}

// LogoutResult reports whether the session flipped to inactive and how many stay active.
type LogoutResult struct {
	Deactivated       bool
	SessionsRemaining int64
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}
