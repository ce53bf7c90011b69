// Package handler exposes registration, login, refresh and logout over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voice-journal/backend/internal/identity/domain"
	"voice-journal/backend/internal/server/httpjson"
	"voice-journal/backend/internal/server/interceptors"
	sessiondomain "voice-journal/backend/internal/session/domain"
	userdomain "voice-journal/backend/internal/user/domain"
	userhandler "voice-journal/backend/internal/user/handler"
)

// RefreshCookieName is the only place a refresh secret is accepted from.
const RefreshCookieName = "refresh_token"

const tokenTypeBearer = "bearer"

// Auth is the part of the session manager the handler uses.
type Auth interface {
	Register(ctx context.Context, in domain.RegisterInput, meta sessiondomain.Metadata) (*domain.AuthResult, error)
	LoginWithPassword(ctx context.Context, email, password string, meta sessiondomain.Metadata) (*domain.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error)
	Logout(ctx context.Context, userID, sessionID string) (*domain.LogoutResult, error)
	LogoutAll(ctx context.Context, userID string) (int64, error)
}

// CookieConfig controls the refresh cookie attributes.
type CookieConfig struct {
	Domain string
	Secure bool
	// MaxAge is the refresh TTL.
	MaxAge time.Duration
}

// Tokens is the access token block of a response.
type Tokens struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type authResponse struct {
	User    userhandler.Profile `json:"user"`
	Tokens  Tokens              `json:"tokens"`
	Message string              `json:"message,omitempty"`
}

type logoutResponse struct {
	Message           string `json:"message"`
	SessionsRemaining int64  `json:"sessions_remaining"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handler serves /auth.
type Handler struct {
	auth   Auth
	cookie CookieConfig
	log    *zap.Logger
}

// NewHandler returns a Handler.
func NewHandler(auth Auth, cookie CookieConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{auth: auth, cookie: cookie, log: logger}
}

// Routes mounts the handler on r. requireAuth guards the logout routes.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", h.logout)
		r.Post("/logout-all", h.logoutAll)
	})
}

func metadata(r *http.Request) sessiondomain.Metadata {
	return sessiondomain.Metadata{UserAgent: r.UserAgent(), IPAddress: interceptors.HTTPClientIP(r)}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.auth.Register(r.Context(), domain.RegisterInput(req), metadata(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setRefreshCookie(w, res.RefreshToken)
	httpjson.Write(w, http.StatusOK, authResponse{
		User:    userhandler.ProfileFrom(res.User),
		Tokens:  Tokens{AccessToken: res.AccessToken, TokenType: tokenTypeBearer, ExpiresAt: res.ExpiresAt},
		Message: "User registered successfully",
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.auth.LoginWithPassword(r.Context(), req.Email, req.Password, metadata(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setRefreshCookie(w, res.RefreshToken)
	httpjson.Write(w, http.StatusOK, authResponse{
		User:   userhandler.ProfileFrom(res.User),
		Tokens: Tokens{AccessToken: res.AccessToken, TokenType: tokenTypeBearer, ExpiresAt: res.ExpiresAt},
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		token = c.Value
	}
	res, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) {
			h.clearRefreshCookie(w)
		}
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, Tokens{AccessToken: res.AccessToken, TokenType: tokenTypeBearer, ExpiresAt: res.ExpiresAt})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := interceptors.GetUserID(r.Context())
	sessionID, ok := interceptors.GetSessionID(r.Context())
	if !ok {
		interceptors.Unauthorized(w, interceptors.UnauthorizedDetail)
		return
	}
	res, err := h.auth.Logout(r.Context(), userID, sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	httpjson.Write(w, http.StatusOK, logoutResponse{Message: "Successfully logged out", SessionsRemaining: res.SessionsRemaining})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserID(r.Context())
	if !ok {
		interceptors.Unauthorized(w, interceptors.UnauthorizedDetail)
		return
	}
	closed, err := h.auth.LogoutAll(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	httpjson.Write(w, http.StatusOK, logoutResponse{Message: fmt.Sprintf("Logged out from %d sessions", closed)})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   int(h.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpjson.ErrBadRequest):
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
	case errors.Is(err, domain.ErrInvalidCredentials):
		interceptors.Unauthorized(w, "Incorrect email or password")
	case errors.Is(err, domain.ErrInvalidRefreshToken):
		interceptors.Unauthorized(w, "Invalid or expired refresh token")
	case errors.Is(err, domain.ErrUnauthenticated):
		interceptors.Unauthorized(w, interceptors.UnauthorizedDetail)
	case errors.Is(err, domain.ErrEmailAlreadyRegistered):
		httpjson.Error(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, domain.ErrUsernameTaken):
		httpjson.Error(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, userdomain.ErrInvalidInput):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("auth request failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
