// Package handler serves the principal's own profile, sessions and quota over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voice-journal/backend/internal/server/httpjson"
	"voice-journal/backend/internal/server/interceptors"
	sessiondomain "voice-journal/backend/internal/session/domain"
	"voice-journal/backend/internal/user/domain"
	"voice-journal/backend/internal/user/service"
)

// Users is the part of service.UserService the handler uses.
type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (*domain.User, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	LimitInfo(ctx context.Context, id string) (domain.LimitInfo, error)
	ConsumeRecord(ctx context.Context, id string) (domain.LimitInfo, error)
}

// SessionLister lists the live sessions of a principal.
type SessionLister interface {
	ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
}

// Profile is the public view of a principal.
type Profile struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLogin        *time.Time `json:"last_login"`
	DailyRecordsUsed int        `json:"daily_records_used"`
	MaxDailyRecords  int        `json:"max_daily_records"`
}

// ProfileFrom builds the public view of u. The password hash never leaves the process.
func ProfileFrom(u *domain.User) Profile {
	return Profile{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		IsActive:         u.IsActive,
		CreatedAt:        u.CreatedAt,
		LastLogin:        u.LastLogin,
		DailyRecordsUsed: u.DailyRecordsUsed,
		MaxDailyRecords:  u.MaxDailyRecords,
	}
}

// SessionInfo is the public view of a session. Refresh material is never included.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

// Limits is the quota view.
type Limits struct {
	UsedToday int       `json:"used_today"`
	MaxDaily  int       `json:"max_daily"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

func limitsFrom(li domain.LimitInfo) Limits {
	return Limits{UsedToday: li.UsedToday, MaxDaily: li.MaxDaily, Remaining: li.Remaining, ResetTime: li.ResetTime}
}

type updateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Handler serves /users/me. Every route expects interceptors.HTTPAuth in front of it.
type Handler struct {
	users    Users
	sessions SessionLister
	log      *zap.Logger
}

// NewHandler returns a Handler.
func NewHandler(users Users, sessions SessionLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, sessions: sessions, log: logger}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/me", h.getMe)
	r.Put("/me", h.updateMe)
	r.Delete("/me", h.deleteMe)
	r.Post("/me/deactivate", h.deactivateMe)
	r.Get("/me/sessions", h.listSessions)
	r.Get("/me/limits", h.limits)
	r.Post("/me/limits/consume", h.consume)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := interceptors.GetUserID(r.Context())
	if !ok {
		interceptors.Unauthorized(w, interceptors.UnauthorizedDetail)
	}
	return id, ok
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	u, ok := interceptors.GetUser(r.Context())
	if !ok {
		interceptors.Unauthorized(w, interceptors.UnauthorizedDetail)
		return
	}
	httpjson.Write(w, http.StatusOK, ProfileFrom(u))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), id, service.UpdateInput(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, ProfileFrom(u))
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, messageResponse{Message: "Account deleted successfully"})
}

func (h *Handler) deactivateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.users.Deactivate(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, messageResponse{Message: "Account deactivated"})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.sessions.ListSessions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	current, _ := interceptors.GetSessionID(r.Context())
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SessionInfo{
			ID:        s.ID,
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
			CreatedAt: s.CreatedAt,
			LastUsed:  s.LastUsed,
			ExpiresAt: s.ExpiresAt,
			Current:   s.ID == current,
		})
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *Handler) limits(w http.ResponseWriter, r *http.Request) {
	id, ok := h.principal(w, r)
	if !ok {
		return
	}
	li, err := h.users.LimitInfo(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, limitsFrom(li))
}

func (h *Handler) consume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.principal(w, r)
	if !ok {
		return
	}
	li, err := h.users.ConsumeRecord(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, limitsFrom(li))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpjson.ErrBadRequest):
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
	case errors.Is(err, domain.ErrInvalidInput):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		httpjson.Error(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, domain.ErrUsernameTaken):
		httpjson.Error(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, domain.ErrDailyLimitReached):
		httpjson.Error(w, http.StatusTooManyRequests, "Daily record limit reached")
	case errors.Is(err, domain.ErrNotFound):
		// The principal vanished between authentication and this call.
		interceptors.Unauthorized(w, interceptors.UnauthorizedDetail)
	default:
		h.log.Error("user request failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
