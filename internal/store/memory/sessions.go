package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"voice-journal/backend/internal/session/domain"
	"voice-journal/backend/internal/session/repository"
)

// SessionRepository implements the session ledger over a Store.
type SessionRepository struct {
	s *Store
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (r *SessionRepository) Create(ctx context.Context, ses *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[ses.ID]; ok {
		return fmt.Errorf("%w: id", repository.ErrDuplicateToken)
	}
	for _, other := range r.s.sessions {
		if other.RefreshTokenHash == ses.RefreshTokenHash {
			return fmt.Errorf("%w: refresh token", repository.ErrDuplicateToken)
		}
	}
	if _, ok := r.s.users[ses.UserID]; !ok {
		return fmt.Errorf("session owner %s does not exist", ses.UserID)
	}
	c := copySession(ses)
	r.s.sessions[c.ID] = c
	recordLocked(ctx, func() { delete(r.s.sessions, c.ID) })
	return nil
}

func (r *SessionRepository) FindActiveByID(_ context.Context, id string, now time.Time) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ses, ok := r.s.sessions[id]
	if !ok || !ses.AccessValid(now) {
		return nil, nil
	}
	return copySession(ses), nil
}

func (r *SessionRepository) FindActiveByRefreshHash(_ context.Context, hash string, now time.Time) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, ses := range r.s.sessions {
		if ses.RefreshTokenHash == hash && ses.RefreshValid(now) {
			return copySession(ses), nil
		}
	}
	return nil, nil
}

func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ses, ok := r.s.sessions[id]
	if !ok {
		return nil
	}
	prev := ses.LastUsed
	ses.LastUsed = at
	recordLocked(ctx, func() { ses.LastUsed = prev })
	return nil
}

func (r *SessionRepository) ExtendAccess(ctx context.Context, id string, expiresAt, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ses, ok := r.s.sessions[id]
	if !ok || !ses.RefreshValid(at) {
		return false, nil
	}
	prevExp, prevUsed := ses.ExpiresAt, ses.LastUsed
	ses.ExpiresAt, ses.LastUsed = expiresAt, at
	recordLocked(ctx, func() { ses.ExpiresAt, ses.LastUsed = prevExp, prevUsed })
	return true, nil
}

func (r *SessionRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ses, ok := r.s.sessions[id]
	if !ok || !ses.IsActive {
		return false, nil
	}
	ses.IsActive = false
	recordLocked(ctx, func() { ses.IsActive = true })
	return true, nil
}

func (r *SessionRepository) DeactivateAll(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var flipped []*domain.Session
	for _, ses := range r.s.sessions {
		if ses.UserID == userID && ses.IsActive {
			ses.IsActive = false
			flipped = append(flipped, ses)
		}
	}
	recordLocked(ctx, func() {
		for _, ses := range flipped {
			ses.IsActive = true
		}
	})
	return int64(len(flipped)), nil
}

func (r *SessionRepository) CountActive(_ context.Context, userID string, now time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, ses := range r.s.sessions {
		if ses.UserID == userID && ses.RefreshValid(now) {
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) ListActive(_ context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	r.s.mu.RLock()
	var out []*domain.Session
	for _, ses := range r.s.sessions {
		if ses.UserID == userID && ses.RefreshValid(now) {
			out = append(out, copySession(ses))
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *SessionRepository) Sweep(ctx context.Context, now time.Time, retention time.Duration) (domain.SweepResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		res         domain.SweepResult
		deleted     []*domain.Session
		deactivated []*domain.Session
	)
	for id, ses := range r.s.sessions {
		if ses.RefreshExpiresAt.Before(now) {
			deleted = append(deleted, ses)
			delete(r.s.sessions, id)
		}
	}
	cutoff := now.Add(-retention)
	for _, ses := range r.s.sessions {
		if ses.IsActive && ses.ExpiresAt.Before(cutoff) {
			ses.IsActive = false
			deactivated = append(deactivated, ses)
		}
	}
	recordLocked(ctx, func() {
		for _, ses := range deactivated {
			ses.IsActive = true
		}
		for _, ses := range deleted {
			r.s.sessions[ses.ID] = ses
		}
	})
	res.Deleted, res.Deactivated = int64(len(deleted)), int64(len(deactivated))
	return res, nil
}
