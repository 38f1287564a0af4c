package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/eventcert/internal/config"
	"github.com/and161185/eventcert/internal/eligibility"
	"github.com/and161185/eventcert/internal/events"
	"github.com/and161185/eventcert/internal/limiter"
	"github.com/and161185/eventcert/internal/metrics"
	"github.com/and161185/eventcert/internal/migrate"
	"github.com/and161185/eventcert/internal/pdf"
	"github.com/and161185/eventcert/internal/repository/postgres"
	grpcserver "github.com/and161185/eventcert/internal/server/grpc"
	httpserver "github.com/and161185/eventcert/internal/server/http"
	"github.com/and161185/eventcert/internal/service"
	"github.com/and161185/eventcert/internal/storage"
)

func serveCommand() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API and the public HTTP endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			logger.Info("starting",
				zap.String("version", version),
				zap.String("buildDate", buildDate),
				zap.String("grpcAddr", cfg.GRPCAddr),
				zap.String("httpAddr", cfg.HTTPAddr),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on start")
	return cmd
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, func(), error) {
	switch cfg.Backend {
	case "gcs":
		g, err := storage.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	default:
		l, err := storage.NewLocal(cfg.LocalDir)
		return l, func() {}, err
	}
}

func openLimiter(cfg *config.Config, db *postgres.DB) (limiter.Limiter, func(), error) {
	lc := cfg.Limiter
	if lc.Backend != "redis" {
		return limiter.NewPG(db.Pool, lc.Window, lc.MaxFails, lc.BlockFor), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	return limiter.NewRedis(rc, lc.Window, lc.MaxFails, lc.BlockFor), func() { _ = rc.Close() }, nil
}

func openPublisher(cfg config.KafkaConfig) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return events.Nop{}, nil
	}
	return events.NewKafka(cfg.Brokers, cfg.Topic, cfg.Timeout)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, runMigrations bool) error {
	if runMigrations {
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore()

	lim, closeLim, err := openLimiter(cfg, db)
	if err != nil {
		return err
	}
	defer closeLim()

	pub, err := openPublisher(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories
	templateRepo := postgres.NewTemplateRepo(db)
	registrationRepo := postgres.NewRegistrationRepo(db)
	certificateRepo := postgres.NewCertificateRepo(db)
	accessRepo := postgres.NewAccessRepo(db)

	// Services
	authSvc := service.NewAuthService([]byte(cfg.JWTKey))
	certSvc := service.NewCertificateService(service.CertificateDeps{
		Registrations: registrationRepo,
		Templates:     templateRepo,
		Certificates:  certificateRepo,
		Access:        accessRepo,
		Store:         store,
		Renderer: pdf.NewChrome(pdf.Options{
			ChromePath:    cfg.Render.ChromePath,
			Timeout:       cfg.Render.Timeout,
			MaxConcurrent: cfg.Render.MaxConcurrent,
		}, m),
		Publisher:      pub,
		PublishTimeout: cfg.Kafka.Timeout,
		Policy:         eligibility.Policy{RequirePastEvent: cfg.Policy.RequirePastEvent},
		BaseURL:        cfg.PublicBaseURL,
		Logger:         logger.Named("certificates"),
		Metrics:        m,
	})
	templateSvc := service.NewTemplateService(templateRepo, accessRepo, store, logger.Named("templates"))
	verifier := service.NewGuardedVerifier(certSvc, lim, logger.Named("verify"), m)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(authSvc, grpcserver.MethodVerify),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("gRPC listening without TLS")
	}
	gs := grpc.NewServer(opts...)
	grpcserver.Register(gs, grpcserver.New(certSvc, templateSvc, verifier))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if cfg.Dev {
		reflection.Register(gs)
	}

	hsrv := httpserver.New(cfg.HTTPAddr, httpserver.Router(verifier, logger.Named("http"), httpserver.Options{
		Gatherer:   reg,
		TrustProxy: cfg.TrustProxy,
	}))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- gs.Serve(lis)
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := hsrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for stop
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	hs.Shutdown()
	shutdown(gs, hsrv, cfg.ShutdownTimeout, logger)
	logger.Info("shutdown complete")
	return runErr
}

// shutdown drains both servers, forcing the gRPC stop after timeout.
func shutdown(gs *grpc.Server, hsrv *http.Server, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := hsrv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		gs.Stop()
	}
}
