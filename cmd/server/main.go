// Server runs the voice journal auth backend: the HTTP API, gRPC health and the session sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"voice-journal/backend/internal/config"
	"voice-journal/backend/internal/db/migrate"
	healthhandler "voice-journal/backend/internal/health/handler"
	identityhandler "voice-journal/backend/internal/identity/handler"
	identityservice "voice-journal/backend/internal/identity/service"
	"voice-journal/backend/internal/logger"
	"voice-journal/backend/internal/security"
	"voice-journal/backend/internal/server"
	"voice-journal/backend/internal/session"
	"voice-journal/backend/internal/telemetry"
	oteltelemetry "voice-journal/backend/internal/telemetry/otel"
	"voice-journal/backend/internal/telemetry/producer"
	userhandler "voice-journal/backend/internal/user/handler"
	userservice "voice-journal/backend/internal/user/service"
)

const (
	serviceName     = "voice-journal-backend"
	shutdownTimeout = 10 * time.Second
	healthInterval  = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	providers, err := oteltelemetry.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(shCtx)
	}()

	if cfg.DatabaseURL != "" {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic, log)
	defer func() { _ = kafkaProducer.Close() }()
	events := telemetry.Multi{oteltelemetry.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		events = append(events, kafkaProducer)
	}

	tokens, err := tokenProvider(cfg, log)
	if err != nil {
		return err
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	auth := identityservice.NewAuthService(identityservice.Deps{
		Users:    st.users,
		Sessions: st.sessions,
		Tx:       st.tx,
		Hasher:   hasher,
		Tokens:   tokens,
		Gate:     st.gate,
		Events:   events,
		Logger:   log.Named("identity"),
	}, identityservice.Options{
		AccessTTL:              cfg.AccessTTL(),
		RefreshTTL:             cfg.RefreshTTL(),
		CleanupRetention:       cfg.CleanupRetention(),
		MaxSessionsPerUser:     cfg.MaxSessionsPerUser,
		DefaultMaxDailyRecords: cfg.DefaultMaxDailyRecords,
	})
	users := userservice.NewUserService(st.users, st.tx, hasher, auth, events, log.Named("user"), nil)

	checker := healthhandler.NewChecker(st.pinger, log.Named("health"))
	router := server.NewRouter(server.HTTPDeps{
		Resolver: auth,
		Auth: identityhandler.NewHandler(auth, identityhandler.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.SecureCookies,
			MaxAge: cfg.RefreshTTL(),
		}, log.Named("http")),
		Users:          userhandler.NewHandler(users, auth, log.Named("http")),
		Health:         checker,
		AllowedOrigins: cfg.AllowedOriginsList(),
		Logger:         log.Named("http"),
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := grpcListener(cfg.GRPCAddr)
	if err != nil {
		return err
	}
	hs := health.NewServer()
	var grpcServer *grpc.Server
	if lis != nil {
		grpcServer = server.NewGRPCServer(auth, hs, log.Named("grpc"))
	} else {
		log.Info("grpc disabled")
	}

	sweeper := session.NewSweeper(auth.SweepExpired, cfg.SweepInterval(), log.Named("sweeper"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			log.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error { return checker.Watch(gctx, hs, healthInterval) })
	}
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shCtx)
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		// Let in-flight async event emits finish before the producers close.
		time.Sleep(telemetry.ShutdownDrainDuration)
		return err
	})
	return g.Wait()
}

// grpcListener listens on addr. An empty addr disables gRPC and returns a nil listener.
func grpcListener(addr string) (net.Listener, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return lis, nil
}

func tokenProvider(cfg *config.Config, log *zap.Logger) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" && cfg.JWTPublicKey == "" && !cfg.IsProduction() {
		signer, pub, err := security.GenerateEphemeralKeyPair(cfg.JWTAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("jwt keys: %w", err)
		}
		log.Warn("no JWT keys configured; using an ephemeral key pair, tokens will not survive a restart")
		return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience), nil
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience), nil
}
