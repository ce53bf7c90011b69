package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"voice-journal/backend/internal/server/interceptors"
)

// PublicMethods run without a bearer token.
var PublicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a server with the standard health service registered. Unary calls are
// authenticated through resolver and then logged; health probes are not logged.
func NewGRPCServer(resolver interceptors.Resolver, hs *health.Server, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(resolver, PublicMethods, logger),
			interceptors.LoggingUnary(logger, PublicMethods),
		),
	}, opts...)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, hs)
	return s
}
