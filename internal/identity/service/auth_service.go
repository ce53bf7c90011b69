// Package service implements the session manager: password authentication, registration,
// login, refresh, bearer resolution, logout and the session sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voice-journal/backend/internal/db"
	"voice-journal/backend/internal/identity/domain"
	"voice-journal/backend/internal/security"
	sessiondomain "voice-journal/backend/internal/session/domain"
	sessionrepo "voice-journal/backend/internal/session/repository"
	"voice-journal/backend/internal/session/touch"
	"voice-journal/backend/internal/telemetry"
	userdomain "voice-journal/backend/internal/user/domain"
	userrepo "voice-journal/backend/internal/user/repository"
)

const eventSource = "identity"

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Deps are the collaborators of AuthService. Users, Sessions, Tx, Hasher and Tokens are required.
type Deps struct {
	Users    userrepo.Repository
	Sessions sessionrepo.Repository
	Tx       db.Transactor
	Hasher   *security.Hasher
	Tokens   *security.TokenProvider
	// Gate debounces last_used writes on Resolve; nil writes on every request.
	Gate   touch.Gate
	Events telemetry.EventEmitter
	Logger *zap.Logger
}

// Options are the configured lifetimes and limits.
type Options struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	CleanupRetention time.Duration
	// MaxSessionsPerUser is logged at login when exceeded. It is not enforced.
	MaxSessionsPerUser     int
	DefaultMaxDailyRecords int
	// Clock defaults to time.Now. Tests share it with the TokenProvider.
	Clock func() time.Time
}

// AuthService is the session manager.
type AuthService struct {
	users    userrepo.Repository
	sessions sessionrepo.Repository
	tx       db.Transactor
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	gate     touch.Gate
	events   telemetry.EventEmitter
	log      *zap.Logger
	ins      *instruments

	accessTTL   time.Duration
	refreshTTL  time.Duration
	retention   time.Duration
	maxSessions int
	dailyQuota  int
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(deps Deps, opts Options) *AuthService {
	s := &AuthService{
		users:       deps.Users,
		sessions:    deps.Sessions,
		tx:          deps.Tx,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		gate:        deps.Gate,
		events:      deps.Events,
		log:         deps.Logger,
		ins:         newInstruments(),
		accessTTL:   opts.AccessTTL,
		refreshTTL:  opts.RefreshTTL,
		retention:   opts.CleanupRetention,
		maxSessions: opts.MaxSessionsPerUser,
		dailyQuota:  opts.DefaultMaxDailyRecords,
		now:         opts.Clock,
	}
	if s.gate == nil {
		s.gate = touch.Always{}
	}
	if s.events == nil {
		s.events = telemetry.Noop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = defaultRefreshTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *AuthService) clock() time.Time { return s.now().UTC() }

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

func (s *AuthService) emit(typ telemetry.EventType, userID, sessionID string, kv ...string) {
	ev := telemetry.NewEvent(typ, eventSource, userID, sessionID, s.clock())
	for i := 0; i+1 < len(kv); i += 2 {
		ev.With(kv[i], kv[i+1])
	}
	telemetry.EmitAsync(s.events, s.log, ev)
}

// Authenticate returns the active principal owning email when password matches. Unknown email,
// wrong password and inactive principal all fail with ErrInvalidCredentials after one bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		s.hasher.CompareDummy(password)
		return nil, domain.ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, persistence("get user by email", err)
	}
	if u == nil {
		s.hasher.CompareDummy(password)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) || !u.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

// LoginWithPassword authenticates and then logs in.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string, meta sessiondomain.Metadata) (res *domain.AuthResult, err error) {
	ctx, span := s.ins.span(ctx, "LoginWithPassword")
	defer func() { endSpan(span, err) }()

	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.ins.logins.Add(ctx, 1, outcome("invalid_credentials"))
			s.log.Info("login failed", zap.String("ip", meta.IPAddress))
			s.emit(telemetry.EventLoginFailure, "", "", "ip", meta.IPAddress)
		}
		return nil, err
	}
	return s.Login(ctx, u, meta)
}

// Login creates a new session for u and issues its access token and refresh secret. The
// session row and last_login are written in one transaction.
func (s *AuthService) Login(ctx context.Context, u *userdomain.User, meta sessiondomain.Metadata) (*domain.AuthResult, error) {
	var res *domain.AuthResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.startSession(ctx, u, meta)
		return err
	})
	if err != nil {
		s.ins.logins.Add(ctx, 1, outcome("error"))
		return nil, err
	}
	s.ins.logins.Add(ctx, 1, outcome("ok"))
	s.logActiveSessions(ctx, u.ID)
	s.log.Info("login", zap.String("user_id", u.ID), zap.String("session_id", res.Session.ID))
	s.emit(telemetry.EventLogin, u.ID, res.Session.ID, "ip", meta.IPAddress)
	return res, nil
}

// startSession persists a session for u and stamps last_login. It must run inside a transaction.
func (s *AuthService) startSession(ctx context.Context, u *userdomain.User, meta sessiondomain.Metadata) (*domain.AuthResult, error) {
	now := s.clock()
	refresh, err := security.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:               uuid.NewString(),
		UserID:           u.ID,
		RefreshTokenHash: security.HashRefreshToken(refresh),
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		ExpiresAt:        now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		IsActive:         true,
		CreatedAt:        now,
		LastUsed:         now,
	}
	access, exp, err := s.tokens.Issue(security.Claims{
		UserID:    u.ID,
		SessionID: sess.ID,
		Type:      security.TokenTypeAccess,
	}, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, persistence("create session", err)
	}
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, persistence("update last login", err)
	}
	out := *u
	out.LastLogin = &now
	return &domain.AuthResult{
		User:         &out,
		Session:      sess,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

// logActiveSessions logs the active session count and warns above MaxSessionsPerUser.
func (s *AuthService) logActiveSessions(ctx context.Context, userID string) {
	n, err := s.sessions.CountActive(ctx, userID, s.clock())
	if err != nil {
		s.log.Warn("count active sessions", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if s.maxSessions > 0 && n > int64(s.maxSessions) {
		s.log.Warn("active sessions above configured maximum",
			zap.String("user_id", userID), zap.Int64("active_sessions", n), zap.Int("max_sessions", s.maxSessions))
		return
	}
	s.log.Debug("active sessions", zap.String("user_id", userID), zap.Int64("active_sessions", n))
}

// Register creates a principal and logs it in within one transaction.
func (s *AuthService) Register(ctx context.Context, in domain.RegisterInput, meta sessiondomain.Metadata) (res *domain.AuthResult, err error) {
	ctx, span := s.ins.span(ctx, "Register")
	defer func() { endSpan(span, err) }()

	username := strings.TrimSpace(in.Username)
	email := userdomain.NormalizeEmail(in.Email)
	if err := userdomain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := userdomain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := userdomain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, persistence("get user by email", err)
	} else if existing != nil {
		return nil, domain.ErrEmailAlreadyRegistered
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, persistence("get user by username", err)
	} else if existing != nil {
		return nil, domain.ErrUsernameTaken
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock()
	u := &userdomain.User{
		ID:              uuid.NewString(),
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		IsActive:        true,
		CreatedAt:       now,
		MaxDailyRecords: s.dailyQuota,
		LastRecordReset: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, userdomain.ErrEmailTaken) || errors.Is(err, userdomain.ErrUsernameTaken) {
				return err
			}
			return persistence("create user", err)
		}
		var err error
		res, err = s.startSession(ctx, u, meta)
		return err
	})
	if err != nil {
		s.ins.logins.Add(ctx, 1, outcome("register_error"))
		return nil, err
	}
	s.ins.logins.Add(ctx, 1, outcome("registered"))
	s.log.Info("registered", zap.String("user_id", u.ID), zap.String("session_id", res.Session.ID))
	s.emit(telemetry.EventRegister, u.ID, res.Session.ID, "ip", meta.IPAddress)
	return res, nil
}

// Refresh redeems a refresh secret for a new access token bound to the same session. The secret
// itself is not rotated and stays valid until its own expiry or logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *domain.RefreshResult, err error) {
	ctx, span := s.ins.span(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	res, err = s.refresh(ctx, refreshToken)
	switch {
	case errors.Is(err, domain.ErrInvalidRefreshToken):
		s.ins.refresh.Add(ctx, 1, outcome("invalid"))
		s.emit(telemetry.EventRefreshFailure, "", "")
	case err != nil:
		s.ins.refresh.Add(ctx, 1, outcome("error"))
	default:
		s.ins.refresh.Add(ctx, 1, outcome("ok"))
		s.emit(telemetry.EventRefresh, res.UserID, res.SessionID)
	}
	return res, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidRefreshToken
	}
	now := s.clock()
	sess, err := s.sessions.FindActiveByRefreshHash(ctx, security.HashRefreshToken(refreshToken), now)
	if err != nil {
		return nil, persistence("find session by refresh token", err)
	}
	if sess == nil {
		return nil, domain.ErrInvalidRefreshToken
	}
	access, exp, err := s.tokens.Issue(security.Claims{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Type:      security.TokenTypeAccess,
	}, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	// A logout racing this refresh wins: the extend only applies to a still-live row.
	ok, err := s.sessions.ExtendAccess(ctx, sess.ID, now.Add(s.accessTTL), now)
	if err != nil {
		return nil, persistence("extend session", err)
	}
	if !ok {
		return nil, domain.ErrInvalidRefreshToken
	}
	s.log.Debug("refreshed", zap.String("user_id", sess.UserID), zap.String("session_id", sess.ID))
	return &domain.RefreshResult{AccessToken: access, ExpiresAt: exp, SessionID: sess.ID, UserID: sess.UserID}, nil
}

// Resolve turns a bearer access token into its principal and session. Every token, session and
// principal problem fails with ErrUnauthenticated; the reason is logged at debug level.
// Store failures return ErrPersistence.
func (s *AuthService) Resolve(ctx context.Context, bearer string) (*userdomain.User, *sessiondomain.Session, error) {
	u, sess, reason, err := s.resolve(ctx, bearer)
	if err != nil {
		if reason != "" {
			s.log.Debug("bearer rejected", zap.String("reason", reason))
			s.ins.resolves.Add(ctx, 1, outcome(reason))
		} else {
			s.ins.resolves.Add(ctx, 1, outcome("error"))
		}
		return nil, nil, err
	}
	s.ins.resolves.Add(ctx, 1, outcome("ok"))
	return u, sess, nil
}

func (s *AuthService) resolve(ctx context.Context, bearer string) (*userdomain.User, *sessiondomain.Session, string, error) {
	if bearer == "" {
		return nil, nil, "missing", domain.ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(bearer)
	if err != nil {
		return nil, nil, tokenReason(err), domain.ErrUnauthenticated
	}
	if claims.Type != security.TokenTypeAccess {
		return nil, nil, "wrong_type", domain.ErrUnauthenticated
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return nil, nil, "malformed", domain.ErrUnauthenticated
	}
	now := s.clock()
	sess, err := s.sessions.FindActiveByID(ctx, claims.SessionID, now)
	if err != nil {
		return nil, nil, "", persistence("find session", err)
	}
	if sess == nil {
		return nil, nil, "session_inactive", domain.ErrUnauthenticated
	}
	if sess.UserID != claims.UserID {
		return nil, nil, "session_mismatch", domain.ErrUnauthenticated
	}
	if s.gate.Allow(ctx, sess.ID, now) {
		if err := s.sessions.Touch(ctx, sess.ID, now); err != nil {
			s.log.Warn("touch session", zap.String("session_id", sess.ID), zap.Error(err))
		} else {
			sess.LastUsed = now
		}
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, "", persistence("get user", err)
	}
	if u == nil || !u.IsActive {
		return nil, nil, "user_inactive", domain.ErrUnauthenticated
	}
	return u, sess, "", nil
}

func tokenReason(err error) string {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return "expired"
	case errors.Is(err, security.ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, security.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

// Logout deactivates one session of userID. Calling it again reports Deactivated=false.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) (res *domain.LogoutResult, err error) {
	ctx, span := s.ins.span(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	changed, err := s.sessions.Deactivate(ctx, sessionID)
	if err != nil {
		return nil, persistence("deactivate session", err)
	}
	remaining, err := s.sessions.CountActive(ctx, userID, s.clock())
	if err != nil {
		return nil, persistence("count active sessions", err)
	}
	if changed {
		s.ins.logouts.Add(ctx, 1)
		s.log.Info("logout", zap.String("user_id", userID), zap.String("session_id", sessionID),
			zap.Int64("sessions_remaining", remaining))
		s.emit(telemetry.EventLogout, userID, sessionID, "sessions_remaining", strconv.FormatInt(remaining, 10))
	}
	return &domain.LogoutResult{Deactivated: changed, SessionsRemaining: remaining}, nil
}

// LogoutAll deactivates every active session of userID and returns how many it closed.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (closed int64, err error) {
	ctx, span := s.ins.span(ctx, "LogoutAll")
	defer func() { endSpan(span, err) }()

	closed, err = s.sessions.DeactivateAll(ctx, userID)
	if err != nil {
		return 0, persistence("deactivate sessions", err)
	}
	s.ins.logouts.Add(ctx, closed)
	s.log.Info("logout all", zap.String("user_id", userID), zap.Int64("sessions_closed", closed))
	s.emit(telemetry.EventLogoutAll, userID, "", "sessions_closed", strconv.FormatInt(closed, 10))
	return closed, nil
}

// ListSessions returns the live sessions of userID, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	list, err := s.sessions.ListActive(ctx, userID, s.clock())
	if err != nil {
		return nil, persistence("list sessions", err)
	}
	return list, nil
}

// SweepExpired deletes sessions whose refresh window closed and deactivates those whose access
// window closed more than the retention window ago.
func (s *AuthService) SweepExpired(ctx context.Context) (res sessiondomain.SweepResult, err error) {
	ctx, span := s.ins.span(ctx, "SweepExpired")
	defer func() { endSpan(span, err) }()

	res, err = s.sessions.Sweep(ctx, s.clock(), s.retention)
	if err != nil {
		return res, persistence("sweep sessions", err)
	}
	s.ins.swept.Add(ctx, res.Deleted, outcome("deleted"))
	s.ins.swept.Add(ctx, res.Deactivated, outcome("deactivated"))
	if res.Deleted > 0 || res.Deactivated > 0 {
		s.emit(telemetry.EventSweep, "", "",
			"deleted", strconv.FormatInt(res.Deleted, 10),
			"deactivated", strconv.FormatInt(res.Deactivated, 10))
	}
	return res, nil
}
