// Package memory is an in-process store for users and sessions, used when no DATABASE_URL is
// configured and in tests. Writes made inside WithinTx are undone if the transaction fails;
// concurrent readers may observe them before that happens.
package memory

import (
	"context"
	"sync"

	"voice-journal/backend/internal/db"
	sessiondomain "voice-journal/backend/internal/session/domain"
	sessionrepo "voice-journal/backend/internal/session/repository"
	userdomain "voice-journal/backend/internal/user/domain"
	userrepo "voice-journal/backend/internal/user/repository"
)

var (
	_ db.Transactor          = (*Store)(nil)
	_ userrepo.Repository    = (*UserRepository)(nil)
	_ sessionrepo.Repository = (*SessionRepository)(nil)
)

// Store holds all rows behind one lock.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*userdomain.User
	sessions map[string]*sessiondomain.Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*userdomain.User),
		sessions: make(map[string]*sessiondomain.Session),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

type txKey struct{}

// journal collects inverse operations for the writes of one transaction.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

// WithinTx runs fn; on error every write fn made through this store is reverted in reverse order.
// Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(j)
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.rollback(j)
		return err
	}
	return nil
}

func (s *Store) rollback(j *journal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// recordLocked registers undo if ctx carries a transaction. Caller holds s.mu.
func recordLocked(ctx context.Context, undo func()) {
	j, ok := ctx.Value(txKey{}).(*journal)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

// Len reports the number of users and sessions; used by tests and the seed command.
func (s *Store) Len() (users, sessions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.sessions)
}
