package interceptors

import (
	"context"

	sessiondomain "voice-journal/backend/internal/session/domain"
	userdomain "voice-journal/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	userKey    = contextKey{"user"}
	sessionKey = contextKey{"session"}
)

// WithIdentity returns a context carrying the resolved principal and session.
// Handlers read them via GetUser, GetSession, GetUserID and GetSessionID.
func WithIdentity(ctx context.Context, u *userdomain.User, s *sessiondomain.Session) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	ctx = context.WithValue(ctx, sessionKey, s)
	return ctx
}

// GetUser returns the principal from context and true if set; otherwise nil, false.
func GetUser(ctx context.Context) (*userdomain.User, bool) {
	v, ok := ctx.Value(userKey).(*userdomain.User)
	return v, ok && v != nil
}

// GetSession returns the session from context and true if set; otherwise nil, false.
func GetSession(ctx context.Context) (*sessiondomain.Session, bool) {
	v, ok := ctx.Value(sessionKey).(*sessiondomain.Session)
	return v, ok && v != nil
}

// GetUserID returns the principal id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	u, ok := GetUser(ctx)
	if !ok {
		return "", false
	}
	return u.ID, true
}

// GetSessionID returns the session id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	s, ok := GetSession(ctx)
	if !ok {
		return "", false
	}
	return s.ID, true
}
