package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Oniqq60/task_marketplace/internal/catalog"
	"github.com/Oniqq60/task_marketplace/internal/cfg"
	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/Oniqq60/task_marketplace/internal/marketplace"
	"github.com/Oniqq60/task_marketplace/internal/middleware"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	conf, err := cfg.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(conf.LogLevel)

	db, err := connectDB(conf)
	if err != nil {
		logger.Error("failed to connect to database", "driver", conf.DBDriver, "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("failed to access sql DB", "error", err)
		os.Exit(1)
	}

	repo := marketplace.NewRepository(db)
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = repo.Migrate(migrateCtx)
	cancel()
	if err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if conf.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", "addr", conf.RedisAddr, "error", err)
		}
		cancel()
	}

	verifier, err := principal.NewVerifier(conf.JWTSecret, rdb)
	if err != nil {
		logger.Error("failed to build token verifier", "error", err)
		os.Exit(1)
	}

	categories := catalog.Default()
	if conf.CategoriesFile != "" {
		if categories, err = catalog.Load(conf.CategoriesFile); err != nil {
			logger.Error("failed to load categories", "file", conf.CategoriesFile, "error", err)
			os.Exit(1)
		}
	}

	cancelPolicy, err := lifecycle.ParseCancelPolicy(conf.CancelPolicy)
	if err != nil {
		logger.Error("invalid cancel policy", "error", err)
		os.Exit(1)
	}

	var publisher marketplace.EventPublisher = marketplace.NopPublisher{}
	if len(conf.KafkaBrokers) > 0 {
		publisher = marketplace.NewKafkaPublisher(conf.KafkaBrokers, conf.KafkaTopic, logger)
	} else {
		logger.Info("KAFKA_BROKERS not set, lifecycle events are not published")
	}

	deps := marketplace.ServiceDeps{
		Publisher: publisher,
		Catalog:   categories,
		Authority: lifecycle.NewAuthority(cancelPolicy),
		Logger:    logger,
	}
	var limiter middleware.Limiter = middleware.NewMemoryLimiter(conf.RateLimitRequests, conf.RateLimitWindow)
	if rdb != nil {
		deps.Cache = marketplace.NewRedisTaskCache(rdb, conf.CacheTTL)
		limiter = middleware.NewRedisLimiter(rdb, conf.RateLimitRequests, conf.RateLimitWindow)
	}
	service := marketplace.NewMarketplaceService(repo, deps)

	proxies, err := middleware.ParseTrustedProxies(conf.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	marketplace.NewHandler(service, verifier, logger).RegisterHandlers(mux)

	httpServer := &http.Server{
		Addr: ":" + conf.HTTPPort,
		Handler: middleware.Chain(mux,
			middleware.AccessLog(logger, proxies),
			middleware.SecurityHeaders,
			middleware.NewCORS(middleware.CORSOptions{
				AllowedOrigins:   conf.AllowedOrigins,
				AllowCredentials: true,
			}),
			middleware.RateLimit(limiter, conf.RateLimitWindow, proxies, logger),
			middleware.BodyLimit(conf.MaxBodyBytes),
		),
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
		IdleTimeout:  conf.IdleTimeout,
	}

	grpcListener, err := net.Listen("tcp", ":"+conf.GRPCPort)
	if err != nil {
		logger.Error("failed to listen on gRPC port", "port", conf.GRPCPort, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	marketplace.RegisterMarketplaceServer(grpcServer, marketplace.NewGrpcHandler(service, verifier, logger))

	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		logger.Info("gRPC server listening", "addr", grpcListener.Addr().String())
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error("grpc server stopped", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		conf.ShutdownGracePeriod,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return httpServer.Shutdown(ctx)
			},
			"grpc": func(ctx context.Context) error {
				return stopGRPC(ctx, grpcServer)
			},
		},
	)

	exitCode := <-wait
	// the listeners are drained; nothing writes to the stores any more
	if err := publisher.Close(); err != nil {
		logger.Warn("kafka close", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close", "error", err)
		}
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("database close", "error", err)
	}
	logger.Info("marketplace service stopped", "exit_code", exitCode)
	os.Exit(exitCode)
}

func connectDB(conf cfg.Config) (*gorm.DB, error) {
	gormConf := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch conf.DBDriver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(conf.DBPath), gormConf)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer at a time, like the in-process database it is
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(conf.PostgresDSN()), gormConf)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		return db, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", conf.DBDriver)
}

// stopGRPC drains in-flight calls and forces the rest closed once ctx ends.
func stopGRPC(ctx context.Context, srv *grpc.Server) error {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Stop()
		return ctx.Err()
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler).With("service", "marketplace")
}
