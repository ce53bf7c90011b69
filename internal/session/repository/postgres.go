package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"voice-journal/backend/internal/db"
	"voice-journal/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip_address, expires_at,
	refresh_expires_at, is_active, created_at, last_used`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		userAgent sql.NullString
		ip        sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &userAgent, &ip, &s.ExpiresAt,
		&s.RefreshExpiresAt, &s.IsActive, &s.CreatedAt, &s.LastUsed)
	if err != nil {
		return nil, err
	}
	s.UserAgent = userAgent.String
	s.IPAddress = ip.String
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.RefreshExpiresAt = s.RefreshExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastUsed = s.LastUsed.UTC()
	return &s, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	s, err := scanSession(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Create persists the session. The session must have ID and RefreshTokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, user_agent, ip_address, expires_at,
			refresh_expires_at, is_active, created_at, last_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.RefreshTokenHash, nullString(s.UserAgent), nullString(s.IPAddress), s.ExpiresAt,
		s.RefreshExpiresAt, s.IsActive, s.CreatedAt, s.LastUsed)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, pgErr.ConstraintName)
	}
	return err
}

// FindActiveByID returns the session for id if it is active and its access window is open.
func (r *PostgresRepository) FindActiveByID(ctx context.Context, id string, now time.Time) (*domain.Session, error) {
	return r.findOne(ctx, `SELECT `+sessionColumns+` FROM user_sessions
		WHERE id = $1 AND is_active AND expires_at > $2`, id, now)
}

// FindActiveByRefreshHash returns the session for the refresh hash if it is active and its refresh window is open.
func (r *PostgresRepository) FindActiveByRefreshHash(ctx context.Context, refreshHash string, now time.Time) (*domain.Session, error) {
	return r.findOne(ctx, `SELECT `+sessionColumns+` FROM user_sessions
		WHERE refresh_token_hash = $1 AND is_active AND refresh_expires_at > $2`, refreshHash, now)
}

// Touch sets last_used.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE user_sessions SET last_used = $2 WHERE id = $1`, id, at)
	return err
}

// ExtendAccess moves the access window. The WHERE clause is re-checked under the row lock, so a
// concurrent Deactivate that commits first makes this return false.
func (r *PostgresRepository) ExtendAccess(ctx context.Context, id string, expiresAt, at time.Time) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE user_sessions SET expires_at = $2, last_used = $3
		WHERE id = $1 AND is_active AND refresh_expires_at > $3`, id, expiresAt, at)
	return affected(res, err)
}

// Deactivate is compare-and-set on is_active.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE user_sessions SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	return affected(res, err)
}

// DeactivateAll revokes every active session of the user.
func (r *PostgresRepository) DeactivateAll(ctx context.Context, userID string) (int64, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActive counts usable sessions of the user.
func (r *PostgresRepository) CountActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_sessions
		WHERE user_id = $1 AND is_active AND refresh_expires_at > $2`, userID, now).Scan(&n)
	return n, err
}

// ListActive returns usable sessions of the user, newest first.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `SELECT `+sessionColumns+` FROM user_sessions
		WHERE user_id = $1 AND is_active AND refresh_expires_at > $2
		ORDER BY created_at DESC, id`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Sweep runs the two cleanup statements. Each is its own statement under read committed; a row
// that a concurrent refresh extended before the UPDATE takes its lock no longer matches.
func (r *PostgresRepository) Sweep(ctx context.Context, now time.Time, retention time.Duration) (domain.SweepResult, error) {
	var out domain.SweepResult
	q := db.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx, `DELETE FROM user_sessions WHERE refresh_expires_at < $1`, now)
	if err != nil {
		return out, fmt.Errorf("delete expired sessions: %w", err)
	}
	if out.Deleted, err = res.RowsAffected(); err != nil {
		return out, err
	}
	res, err = q.ExecContext(ctx, `
		UPDATE user_sessions SET is_active = FALSE
		WHERE is_active AND expires_at < $1`, now.Add(-retention))
	if err != nil {
		return out, fmt.Errorf("deactivate stale sessions: %w", err)
	}
	if out.Deactivated, err = res.RowsAffected(); err != nil {
		return out, err
	}
	return out, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
