package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"drivelens/internal/config"
	"drivelens/internal/handler"
	"drivelens/internal/logging"
	"drivelens/internal/preview"
	"drivelens/internal/preview/imaging"
	"drivelens/internal/repository"
	"drivelens/internal/service"
	"drivelens/internal/service/drive"
	"drivelens/internal/service/s3"
)

func connectWithRetry(cfg *config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// The target database may not exist yet on a fresh server.
	sys := *cfg
	sys.Name = "postgres"
	pgDB, err := sqlx.Connect("postgres", sys.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		logging.Info("database does not exist, creating", zap.String("database", cfg.Name))
		if _, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %q", cfg.Name)); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.GetDSN())
		if err == nil {
			return db, nil
		}

		logging.Warn("failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func runMigrations(cfg *config.DatabaseConfig, dir string) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://"+dir, cfg.MigrationURL())
		if err == nil {
			break
		}
		logging.Warn("failed to create migrate instance", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(5 * time.Second)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logging.Warn("found dirty database state, forcing version", zap.Uint("version", version))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func openSessionRepository(cfg config.SessionsConfig) (repository.SessionRepository, error) {
	switch cfg.Backend {
	case "postgres":
		db, err := connectWithRetry(cfg.Postgres, 5, 5*time.Second)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(cfg.Postgres, cfg.MigrationsDir); err != nil {
			db.Close()
			return nil, err
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		return repository.NewPostgresSessionRepository(db), nil
	case "badger":
		return repository.OpenBadgerSessionRepository(cfg.BadgerDir)
	default:
		return repository.NewMemorySessionRepository(), nil
	}
}

// resourceBackend is where preview resources live. Handler is set only for
// the in-memory store, whose bytes are served by this process.
type resourceBackend struct {
	store   preview.ResourceStore
	handler *preview.Handler
	ping    func(context.Context) error
}

func openResourceStore(cfg *config.Config) (*resourceBackend, error) {
	if cfg.Resources.Backend == "s3" {
		client, err := s3.NewClient(cfg.Resources.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &resourceBackend{
			store: s3.NewResourceStore(client, cfg.Resources.S3.Prefix),
			ping:  client.Ping,
		}, nil
	}

	mem := preview.NewMemoryStore(cfg.Server.BaseURL)
	return &resourceBackend{store: mem, handler: preview.NewHandler(mem)}, nil
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 4; interval > time.Minute {
		return interval
	}
	return time.Minute
}

func main() {
	configPath := flag.String("config", envOr("DRIVELENS_CONFIG", "config.yaml"), "path to the configuration file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	driveClient := drive.NewClient(cfg.Drive.Config)

	resources, err := openResourceStore(cfg)
	if err != nil {
		logging.Fatal("failed to open resource store", zap.Error(err))
	}

	repo, err := openSessionRepository(cfg.Sessions)
	if err != nil {
		logging.Fatal("failed to open session repository",
			zap.String("backend", cfg.Sessions.Backend),
			zap.Error(err),
		)
	}

	var previewOpts []preview.Option
	if cfg.Preview.OptimizeImages {
		previewOpts = append(previewOpts, preview.WithImageOptimizer(imaging.NewOptimizer(cfg.Preview.MaxImageSize)))
	}

	sessions := service.NewSessionService(
		driveClient,
		resources.store,
		cfg.Drive.Viewer(),
		repo,
		cfg.Server.SessionTTL,
		service.WithPreviewOptions(previewOpts...),
	)
	downloads := service.NewDownloadService(driveClient)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sessions.Run(ctx, cleanupInterval(cfg.Server.SessionTTL))

	checks := map[string]func(*http.Request) error{}
	if resources.ping != nil {
		checks["resources"] = func(r *http.Request) error { return resources.ping(r.Context()) }
	}

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:       sessions,
		Downloads:      downloads,
		Resources:      resources.handler,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthChecks:   checks,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
		if err != nil {
			logging.Fatal("failed to listen for gRPC", zap.Error(err))
		}
		logging.Info("starting gRPC health server", zap.String("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logging.Fatal("failed to serve gRPC", zap.Error(err))
		}
	}()

	go func() {
		logging.Info("starting HTTP server",
			zap.String("port", cfg.Server.Port),
			zap.String("resources", cfg.Resources.Backend),
			zap.String("sessions", cfg.Sessions.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-quit
	logging.Info("shutting down servers")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("HTTP server forced to shutdown", zap.Error(err))
	}

	grpcServer.GracefulStop()

	sessions.Shutdown()

	if err := repo.Close(); err != nil {
		logging.Warn("error closing session repository", zap.Error(err))
	}

	logging.Info("server exited properly")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
