// Package service implements principal profile management and the daily recording quota.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"voice-journal/backend/internal/db"
	"voice-journal/backend/internal/security"
	"voice-journal/backend/internal/telemetry"
	"voice-journal/backend/internal/user/domain"
	"voice-journal/backend/internal/user/repository"
)

// ErrPersistence wraps any store failure.
var ErrPersistence = errors.New("persistence failure")

// SessionRevoker closes every session of a principal. Implemented by the identity service.
type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID string) (int64, error)
}

// UpdateInput holds the profile fields to change; nil fields are left as they are.
type UpdateInput struct {
	Username *string
	Email    *string
	Password *string
}

// UserService manages principals.
type UserService struct {
	users    repository.Repository
	tx       db.Transactor
	hasher   *security.Hasher
	sessions SessionRevoker
	events   telemetry.EventEmitter
	log      *zap.Logger
	now      func() time.Time
}

// NewUserService returns a UserService. events, logger and now may be nil.
func NewUserService(users repository.Repository, tx db.Transactor, hasher *security.Hasher, sessions SessionRevoker,
	events telemetry.EventEmitter, logger *zap.Logger, now func() time.Time) *UserService {
	if events == nil {
		events = telemetry.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, tx: tx, hasher: hasher, sessions: sessions, events: events, log: logger, now: now}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// Get returns the principal or domain.ErrNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, persistence("get user", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// Update changes username, email and/or password. Uniqueness conflicts return
// domain.ErrUsernameTaken or domain.ErrEmailTaken.
func (s *UserService) Update(ctx context.Context, id string, in UpdateInput) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := domain.ValidateUsername(username); err != nil {
			return nil, err
		}
		if username != u.Username {
			other, err := s.users.GetByUsername(ctx, username)
			if err != nil {
				return nil, persistence("get user by username", err)
			}
			if other != nil && other.ID != u.ID {
				return nil, domain.ErrUsernameTaken
			}
			u.Username = username
		}
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if err := domain.ValidateEmail(email); err != nil {
			return nil, err
		}
		if email != u.Email {
			other, err := s.users.GetByEmail(ctx, email)
			if err != nil {
				return nil, persistence("get user by email", err)
			}
			if other != nil && other.ID != u.ID {
				return nil, domain.ErrEmailTaken
			}
			u.Email = email
		}
	}
	if in.Password != nil {
		if err := domain.ValidatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrUsernameTaken) {
			return nil, err
		}
		return nil, persistence("update user", err)
	}
	s.log.Info("user updated", zap.String("user_id", u.ID))
	return u, nil
}

// Deactivate soft-disables the principal and closes all of its sessions in one transaction.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	var closed int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.users.SetActive(ctx, id, false)
		if err != nil {
			return persistence("deactivate user", err)
		}
		if !ok {
			return domain.ErrNotFound
		}
		closed, err = s.sessions.LogoutAll(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("user deactivated", zap.String("user_id", id), zap.Int64("sessions_closed", closed))
	telemetry.EmitAsync(s.events, s.log, telemetry.NewEvent(telemetry.EventUserDisabled, "user", id, "", s.now()))
	return nil
}

// Delete removes the principal; its sessions go with it.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ok, err := s.users.Delete(ctx, id)
	if err != nil {
		return persistence("delete user", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("user deleted", zap.String("user_id", id))
	telemetry.EmitAsync(s.events, s.log, telemetry.NewEvent(telemetry.EventUserDeleted, "user", id, "", s.now()))
	return nil
}

// LimitInfo reports the daily recording quota as of now.
func (s *UserService) LimitInfo(ctx context.Context, id string) (domain.LimitInfo, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return domain.LimitInfo{}, err
	}
	return u.Limits(s.now()), nil
}

// ConsumeRecord uses one recording from today's quota. Returns domain.ErrDailyLimitReached at the cap.
func (s *UserService) ConsumeRecord(ctx context.Context, id string) (domain.LimitInfo, error) {
	now := s.now()
	u, err := s.users.ConsumeRecordQuota(ctx, id, now)
	if err != nil {
		if errors.Is(err, domain.ErrDailyLimitReached) {
			return domain.LimitInfo{}, err
		}
		return domain.LimitInfo{}, persistence("consume record quota", err)
	}
	if u == nil {
		return domain.LimitInfo{}, domain.ErrNotFound
	}
	return u.Limits(now), nil
}
