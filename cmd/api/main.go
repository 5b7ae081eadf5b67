// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the marketplace authentication API.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Install the OpenTelemetry tracer provider.
//  4. Open the storage backends (PostgreSQL + Redis, or in-memory).
//  5. Connect the code publisher (RabbitMQ, or the log sender in development).
//  6. Wire the auth services and HTTP handlers.
//  7. Start the refresh-token janitor and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/marketplace-auth/internal/api"
	"github.com/taibuivan/marketplace-auth/internal/platform/config"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/platform/migration"
	"github.com/taibuivan/marketplace-auth/internal/platform/mq"
	pgstore "github.com/taibuivan/marketplace-auth/internal/platform/postgres"
	redisstore "github.com/taibuivan/marketplace-auth/internal/platform/redis"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/platform/telemetry"
	"github.com/taibuivan/marketplace-auth/internal/users/auth"
	"github.com/taibuivan/marketplace-auth/internal/users/credential"
	"github.com/taibuivan/marketplace-auth/internal/users/delivery"
	"github.com/taibuivan/marketplace-auth/internal/users/otp"
	"github.com/taibuivan/marketplace-auth/internal/users/token"
)

// stores bundles the persistence backends selected by STORAGE_DRIVER.
type stores struct {
	users  credential.Store
	codes  otp.Store
	tokens token.Store
	checks []api.Check
	close  func()
}

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
	)

	// Cancelled on SIGINT/SIGTERM; stops the janitor and the rate limiter sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Use a 30s deadline so misconfiguration is caught quickly rather than
	// hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startupCancel()

	// ── 3. Tracing ────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(startupCtx, cfg.Tracing, constants.AppName, cfg.Environment)
	must(log, err, "initialize tracing")
	defer flushTraces(log, shutdownTracing)

	// ── 4. Storage ────────────────────────────────────────────────────────
	backends, err := openStores(startupCtx, cfg, log)
	must(log, err, "open storage")
	defer backends.close()

	// ── 5. Code Delivery ──────────────────────────────────────────────────
	var sender delivery.Sender = delivery.NewLogSender(log)
	if cfg.RabbitURL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitURL, cfg.MQExchange, constants.AppName)
		must(log, err, "connect to rabbitmq")
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				log.Error("rabbitmq_close_failed", slog.Any("error", cerr))
			}
		}()
		sender = delivery.NewQueueSender(publisher)
		backends.checks = append(backends.checks, api.Check{Name: "rabbitmq", Probe: publisher.Ping})
	} else {
		log.Warn("code_delivery_to_log", slog.String("reason", "RABBIT_URL is empty"))
	}

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	signer, err := sec.NewJWTSigner(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, cfg.JWTIssuer)
	must(log, err, "load signing keys")

	codes := otp.NewManager(backends.codes, otp.Config{
		Length:         cfg.OTPLength,
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
	})
	tokens := token.NewService(backends.tokens, signer, token.Config{
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	authService := auth.NewService(backends.users, codes, tokens, sender, auth.Config{
		StorageTimeout:  cfg.StorageTimeout,
		DeliveryTimeout: cfg.DeliveryTimeout,
	})

	liveness, readiness := api.NewHealthHandlers(log, backends.checks...)

	server := api.NewServer(ctx, cfg, log, authService, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, cfg.OTPLength),
		Admin:     auth.NewAdminHandler(authService),
	})

	// ── 7. Background Work & Serving ──────────────────────────────────────
	go purgeExpiredTokens(ctx, tokens, cfg.TokenPurgeInterval, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case <-ctx.Done():
		log.Info("shutdown_signal_received")
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// openStores connects the backends for cfg.StorageDriver and runs migrations.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("storage_in_memory", slog.String("reason", "records are lost on restart"))
		return &stores{
			users:  credential.NewMemoryStore(),
			codes:  otp.NewMemoryStore(),
			tokens: token.NewMemoryStore(),
			close:  func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.Options{
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.StorageTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	rdb, err := redisstore.NewClient(ctx, cfg.RedisURL, cfg.StorageTimeout, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	return &stores{
		users:  credential.NewPostgresStore(pool),
		codes:  otp.NewRedisStore(rdb),
		tokens: token.NewPostgresStore(pool),
		checks: []api.Check{
			{Name: "postgres", Probe: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }},
			{Name: "redis", Probe: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }},
		},
		close: func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_error", slog.Any("error", cerr))
			}
			log.Info("closing_postgres_pool")
			pool.Close()
		},
	}, nil
}

// purgeExpiredTokens deletes expired refresh tokens every interval until ctx ends.
func purgeExpiredTokens(ctx context.Context, tokens *token.Service, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := tokens.PurgeExpired(ctx)
			if err != nil {
				log.Warn("refresh_token_purge_failed", slog.Any("error", err))
				continue
			}
			if deleted > 0 {
				log.Info("refresh_token_purged", slog.Int64("deleted", deleted))
			}
		}
	}
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

func flushTraces(log *slog.Logger, shutdown telemetry.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("tracing_shutdown_failed", slog.Any("error", err))
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
