package interceptors

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	identitydomain "voice-journal/backend/internal/identity/domain"
	"voice-journal/backend/internal/server/httpjson"
)

// UnauthorizedDetail is the fixed body detail of every 401 for a bearer problem.
const UnauthorizedDetail = "Could not validate credentials"

// Unauthorized writes a 401 with the Bearer challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpjson.Error(w, http.StatusUnauthorized, detail)
}

// HTTPAuth returns middleware that resolves the Authorization bearer token and stores the
// principal and session in the request context. Requests without a valid token get a 401.
func HTTPAuth(resolver Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ParseBearer(r.Header.Get("Authorization"))
			if token == "" {
				Unauthorized(w, UnauthorizedDetail)
				return
			}
			u, sess, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, identitydomain.ErrUnauthenticated) {
					Unauthorized(w, UnauthorizedDetail)
					return
				}
				logger.Error("resolve bearer", zap.String("path", r.URL.Path), zap.Error(err))
				httpjson.Error(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u, sess)))
		})
	}
}
