package repository

import (
	"context"
	"errors"
	"time"

	"voice-journal/backend/internal/session/domain"
)

// ErrDuplicateToken is returned by Create when the session id or refresh hash already exists.
var ErrDuplicateToken = errors.New("duplicate session token")

// Repository is the session ledger. Every method is atomic at the level of a single row (or a
// single statement for the bulk operations). Lookups return (nil, nil) when nothing matches.
// Implementations join the transaction carried by ctx, if any.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindActiveByID returns the session only if is_active and expires_at > now.
	FindActiveByID(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	// FindActiveByRefreshHash returns the session only if is_active and refresh_expires_at > now.
	FindActiveByRefreshHash(ctx context.Context, refreshHash string, now time.Time) (*domain.Session, error)
	// Touch sets last_used to at; last writer wins.
	Touch(ctx context.Context, id string, at time.Time) error
	// ExtendAccess sets expires_at and last_used, but only while the session is active and its
	// refresh window is open at at. Returns false when the row did not qualify.
	ExtendAccess(ctx context.Context, id string, expiresAt, at time.Time) (bool, error)
	// Deactivate flips is_active from true to false. Returns false when it was already inactive or missing.
	Deactivate(ctx context.Context, id string) (bool, error)
	// DeactivateAll flips every active session of userID and returns how many changed.
	DeactivateAll(ctx context.Context, userID string) (int64, error)
	// CountActive counts sessions of userID that are active with an open refresh window at now.
	CountActive(ctx context.Context, userID string, now time.Time) (int64, error)
	// ListActive returns the sessions counted by CountActive, newest first.
	ListActive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	// Sweep deletes rows whose refresh window closed before now, then deactivates active rows whose
	// access window closed more than retention before now.
	Sweep(ctx context.Context, now time.Time, retention time.Duration) (domain.SweepResult, error)
}
