package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"voice-journal/backend/internal/db"
	"voice-journal/backend/internal/user/domain"
)

const userColumns = `id, username, email, password_hash, is_active, created_at, last_login,
	daily_records_used, max_daily_records, last_record_reset`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &lastLogin,
		&u.DailyRecordsUsed, &u.MaxDailyRecords, &u.LastRecordReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.LastRecordReset = u.LastRecordReset.UTC()
	return &u, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	return scanUser(row)
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `email = $1`, domain.NormalizeEmail(email))
}

// GetByUsername returns the user with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_active, created_at, last_login,
			daily_records_used, max_daily_records, last_record_reset)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Username, domain.NormalizeEmail(u.Email), u.PasswordHash, u.IsActive, u.CreatedAt,
		nullTime(u.LastLogin), u.DailyRecordsUsed, u.MaxDailyRecords, u.LastRecordReset)
	return mapUniqueViolation(err)
}

// Update writes the mutable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE users SET username = $2, email = $3, password_hash = $4 WHERE id = $1`,
		u.ID, u.Username, domain.NormalizeEmail(u.Email), u.PasswordHash)
	return mapUniqueViolation(err)
}

// UpdateLastLogin sets last_login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// SetActive sets is_active and reports whether a row matched.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
	return affected(res, err)
}

// Delete removes the user; user_sessions rows go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected(res, err)
}

// ConsumeRecordQuota resets the counter when the UTC date of $2 is past that of last_record_reset,
// then increments it if still under max_daily_records, in a single statement.
func (r *PostgresRepository) ConsumeRecordQuota(ctx context.Context, id string, now time.Time) (*domain.User, error) {
	q := db.Conn(ctx, r.db)
	row := q.QueryRowContext(ctx, `
		WITH cur AS (
			SELECT id,
				(last_record_reset AT TIME ZONE 'UTC')::date < ($2::timestamptz AT TIME ZONE 'UTC')::date AS due
			FROM users WHERE id = $1
			FOR UPDATE
		)
		UPDATE users u SET
			daily_records_used = CASE WHEN cur.due THEN 1 ELSE u.daily_records_used + 1 END,
			last_record_reset  = CASE WHEN cur.due THEN $2::timestamptz ELSE u.last_record_reset END
		FROM cur
		WHERE u.id = cur.id
			AND (CASE WHEN cur.due THEN 0 ELSE u.daily_records_used END) < u.max_daily_records
		RETURNING u.id, u.username, u.email, u.password_hash, u.is_active, u.created_at, u.last_login,
			u.daily_records_used, u.max_daily_records, u.last_record_reset`, id, now.UTC())
	u, err := scanUser(row)
	if err != nil || u != nil {
		return u, err
	}
	existing, err := r.GetByID(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}
	return nil, domain.ErrDailyLimitReached
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return domain.ErrEmailTaken
		case "users_username_key":
			return domain.ErrUsernameTaken
		}
	}
	return err
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

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
