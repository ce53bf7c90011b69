package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"voice-journal/backend/internal/server/httpjson"
	"voice-journal/backend/internal/server/interceptors"
)

// Route mounts a handler group under a prefix.
type Route interface {
	Routes(r chi.Router)
}

// AuthRoutes is the /auth group; its logout routes take the bearer middleware.
type AuthRoutes interface {
	Routes(r chi.Router, requireAuth func(http.Handler) http.Handler)
}

// HTTPDeps is what NewRouter wires together.
type HTTPDeps struct {
	Resolver       interceptors.Resolver
	Auth           AuthRoutes
	Users          Route
	Health         http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the HTTP surface: /auth, /users (bearer required) and /health.
func NewRouter(deps HTTPDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requireAuth := interceptors.HTTPAuth(deps.Resolver, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.Health != nil {
		r.Method(http.MethodGet, "/health", deps.Health)
	}
	r.Route("/auth", func(r chi.Router) {
		deps.Auth.Routes(r, requireAuth)
	})
	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		deps.Users.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpjson.Error(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpjson.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// RequestLogger logs one line per request. /health is logged at debug.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("client_ip", interceptors.HTTPClientIP(r)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				switch {
				case r.URL.Path == "/health":
					logger.Debug("http request", fields...)
				case ww.Status() >= http.StatusInternalServerError:
					logger.Warn("http request", fields...)
				default:
					logger.Info("http request", fields...)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
