package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailTaken is returned by repositories when the email unique constraint is violated.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned by repositories when the username unique constraint is violated.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrNotFound is returned by services when the principal does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDailyLimitReached is returned when the daily recording quota is used up.
	ErrDailyLimitReached = errors.New("daily record limit reached")
)

// User is a principal: an identity that can authenticate and own sessions.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time // nil until first login

	DailyRecordsUsed int
	MaxDailyRecords  int
	LastRecordReset  time.Time
}

const (
	MinUsernameLen = 3
	MaxUsernameLen = 50
	MinPasswordLen = 8
	// MaxPasswordLen is the bcrypt input limit in bytes.
	MaxPasswordLen = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address is a bare addr-spec.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	return nil
}

// ValidateUsername checks length and the allowed character set.
func ValidateUsername(username string) error {
	n := len(username)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, MinUsernameLen, MaxUsernameLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may contain letters, digits, '_', '.' and '-'", ErrInvalidInput)
	}
	return nil
}

// ValidatePassword checks password length in bytes.
func ValidatePassword(password string) error {
	n := len(password)
	if n < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLen)
	}
	if n > MaxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxPasswordLen)
	}
	return nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}
	if u.MaxDailyRecords < 0 {
		return fmt.Errorf("%w: max daily records must not be negative", ErrInvalidInput)
	}
	return nil
}
