package memory

import (
	"context"
	"time"

	sessiondomain "voice-journal/backend/internal/session/domain"
	"voice-journal/backend/internal/user/domain"
)

// UserRepository implements the user repository over a Store.
type UserRepository struct {
	s *Store
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return copyUser(r.s.users[id]), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// conflictLocked checks unique email and username against every user other than u.
func (r *UserRepository) conflictLocked(u *domain.User) error {
	email := domain.NormalizeEmail(u.Email)
	for id, other := range r.s.users {
		if id == u.ID {
			continue
		}
		if other.Email == email {
			return domain.ErrEmailTaken
		}
		if other.Username == u.Username {
			return domain.ErrUsernameTaken
		}
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.conflictLocked(u); err != nil {
		return err
	}
	c := copyUser(u)
	c.Email = domain.NormalizeEmail(c.Email)
	r.s.users[c.ID] = c
	recordLocked(ctx, func() { delete(r.s.users, c.ID) })
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.ID]
	if !ok {
		return nil
	}
	if err := r.conflictLocked(u); err != nil {
		return err
	}
	prev := *cur
	cur.Username = u.Username
	cur.Email = domain.NormalizeEmail(u.Email)
	cur.PasswordHash = u.PasswordHash
	recordLocked(ctx, func() { *cur = prev })
	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[id]
	if !ok {
		return nil
	}
	prev := cur.LastLogin
	t := at
	cur.LastLogin = &t
	recordLocked(ctx, func() { cur.LastLogin = prev })
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[id]
	if !ok {
		return false, nil
	}
	prev := cur.IsActive
	cur.IsActive = active
	recordLocked(ctx, func() { cur.IsActive = prev })
	return true, nil
}

// Delete removes the user and every session it owns.
func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return false, nil
	}
	delete(r.s.users, id)
	var owned []*sessiondomain.Session
	for sid, ses := range r.s.sessions {
		if ses.UserID == id {
			owned = append(owned, ses)
			delete(r.s.sessions, sid)
		}
	}
	recordLocked(ctx, func() {
		r.s.users[id] = u
		for _, ses := range owned {
			r.s.sessions[ses.ID] = ses
		}
	})
	return true, nil
}

func (r *UserRepository) ConsumeRecordQuota(ctx context.Context, id string, now time.Time) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	prev := *cur
	if err := cur.ConsumeRecord(now); err != nil {
		return nil, err
	}
	recordLocked(ctx, func() { *cur = prev })
	return copyUser(cur), nil
}
