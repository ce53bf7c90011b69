package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identitydomain "voice-journal/backend/internal/identity/domain"
	sessiondomain "voice-journal/backend/internal/session/domain"
	userdomain "voice-journal/backend/internal/user/domain"
)

const bearerPrefix = "bearer "

// Resolver turns a bearer access token into its principal and session. Implemented by the
// identity service; failures are identitydomain.ErrUnauthenticated or a server fault.
type Resolver interface {
	Resolve(ctx context.Context, bearer string) (*userdomain.User, *sessiondomain.Session, error)
}

// AuthUnary returns a unary server interceptor that resolves the Bearer (access) token
// from gRPC metadata and sets the principal and session in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. the gRPC health check). A public method with a bad token still runs, anonymously.
func AuthUnary(resolver Resolver, publicMethods map[string]bool, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		u, sess, err := resolver.Resolve(ctx, token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			if errors.Is(err, identitydomain.ErrUnauthenticated) {
				return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
			}
			logger.Error("resolve bearer", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Internal, "internal error")
		}

		return handler(WithIdentity(ctx, u, sess), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return ParseBearer(vals[0])
}

// ParseBearer returns the token of an "Authorization: Bearer <token>" value, or "" if the
// scheme is not Bearer. The scheme is case-insensitive.
func ParseBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
