package repository

import (
	"context"
	"time"

	"voice-journal/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when no row matches;
// errors are returned only for persistence failures. Implementations join the transaction
// carried by ctx, if any.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail matches the normalized (lowercase) email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Create inserts u. Unique violations map to domain.ErrEmailTaken or domain.ErrUsernameTaken.
	Create(ctx context.Context, u *domain.User) error
	// Update writes username, email and password hash. Unique violations map as in Create.
	Update(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// SetActive returns false when no row matched.
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	// Delete removes the user and, by cascade, its sessions. Returns false when no row matched.
	Delete(ctx context.Context, id string) (bool, error)
	// ConsumeRecordQuota atomically applies one recording to the daily quota as of now and
	// returns the updated user. Returns domain.ErrDailyLimitReached at the cap and (nil, nil)
	// when the user does not exist.
	ConsumeRecordQuota(ctx context.Context, id string, now time.Time) (*domain.User, error)
}
