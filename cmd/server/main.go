package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/bookshare/internal/api"
	"github.com/lalith-99/bookshare/internal/catalog"
	"github.com/lalith-99/bookshare/internal/config"
	"github.com/lalith-99/bookshare/internal/db"
	"github.com/lalith-99/bookshare/internal/lending"
	"github.com/lalith-99/bookshare/internal/messaging"
	"github.com/lalith-99/bookshare/internal/metadata"
	"github.com/lalith-99/bookshare/internal/middleware"
	"github.com/lalith-99/bookshare/internal/observ"
	"github.com/lalith-99/bookshare/internal/repository/postgres"
	"github.com/lalith-99/bookshare/internal/reviews"
	"github.com/lalith-99/bookshare/internal/social"
	"github.com/lalith-99/bookshare/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var migrateOnStart bool

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrateOnStart)
		},
	}
	serve.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply pending migrations before serving")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context())
		},
	}

	root := &cobra.Command{
		Use:           "bookshare",
		Short:         "Neighbourhood book lending API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, migrate)
	return root
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func runMigrate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	return database.Migrate(ctx)
}

func runServe(ctx context.Context, migrateOnStart bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	if migrateOnStart {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	store := postgres.NewStore(database.Pool())

	limiter, closeLimiter, err := newAuthLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var objects storage.ObjectStore
	if cfg.Minio.Enabled() {
		minioStore, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		objects = minioStore
	} else {
		logger.Warn("object storage not configured, uploads disabled")
	}

	router := api.NewRouter(api.Deps{
		Store:          store,
		Catalog:        catalog.NewService(store, metadata.NewClient(cfg.OpenLibraryURL), logger),
		Lending:        lending.NewEngine(store, logger),
		Social:         social.NewService(store, logger),
		Messaging:      messaging.NewService(store, logger),
		Reviews:        reviews.NewService(store, logger),
		Objects:        objects,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthLimiter:    limiter,
		Health:         database.Health,
		Session: api.Session{
			Secret: cfg.JWTSecret,
			TTL:    cfg.JWTTTL,
			Cookie: cfg.CookieName,
			Secure: cfg.IsProduction(),
		},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting bookshare", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newAuthLimiter uses Redis when REDIS_URL is set so every replica shares
// one quota, and an in-process limiter otherwise.
func newAuthLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (middleware.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("rate limiting in process")
		return middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerMinute, 10*time.Minute), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	limiter, err := middleware.NewFixedWindowLimiter(client, "bookshare:ratelimit", cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("rate limiting via redis")
	return limiter, func() { _ = client.Close() }, nil
}
