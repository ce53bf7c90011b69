package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	identitydomain "voice-journal/backend/internal/identity/domain"
	"voice-journal/backend/internal/server/interceptors"
	sessiondomain "voice-journal/backend/internal/session/domain"
	userdomain "voice-journal/backend/internal/user/domain"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, bearer string) (*userdomain.User, *sessiondomain.Session, error) {
	if bearer != "good-token" {
		return nil, nil, identitydomain.ErrUnauthenticated
	}
	return &userdomain.User{ID: "u1"}, &sessiondomain.Session{ID: "s1", UserID: "u1"}, nil
}

type stubAuth struct{}

func (stubAuth) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/login", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.With(requireAuth).Post("/logout", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

type stubUsers struct{}

func (stubUsers) Routes(r chi.Router) {
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		if id, _ := interceptors.GetUserID(r.Context()); id != "u1" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRouter() http.Handler {
	return NewRouter(HTTPDeps{
		Resolver:       stubResolver{},
		Auth:           stubAuth{},
		Users:          stubUsers{},
		Health:         http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestRouter()
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		code   int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"login is public", http.MethodPost, "/auth/login", "", http.StatusOK},
		{"logout needs bearer", http.MethodPost, "/auth/logout", "", http.StatusUnauthorized},
		{"logout with bearer", http.MethodPost, "/auth/logout", "good-token", http.StatusOK},
		{"users needs bearer", http.MethodGet, "/users/me", "", http.StatusUnauthorized},
		{"users bad bearer", http.MethodGet, "/users/me", "bad-token", http.StatusUnauthorized},
		{"users with bearer", http.MethodGet, "/users/me", "good-token", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/auth/login", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestRouter()
	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}
