// Package main is the entrypoint for the KeyGate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keygate-io/keygate/internal/api"
	"github.com/keygate-io/keygate/internal/api/handler"
	mw "github.com/keygate-io/keygate/internal/api/middleware"
	"github.com/keygate-io/keygate/internal/api/response"
	"github.com/keygate-io/keygate/internal/auth"
	"github.com/keygate-io/keygate/internal/cache"
	"github.com/keygate-io/keygate/internal/config"
	"github.com/keygate-io/keygate/internal/crypto"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/internal/token"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "key_ttl_days", cfg.Token.TTLDays)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Build the authorization core
	sealer, err := crypto.NewSealer(cfg.Token.Secret)
	if err != nil {
		return fmt.Errorf("create sealer: %w", err)
	}
	codec := token.NewCodec(sealer)

	pgStore := store.NewPostgresStore(pool)
	router := tenant.NewRouter(pgStore, redisCache)
	issuer := auth.NewIssuer(pgStore, router, codec, cfg.Token.TTLDays)
	evaluator := auth.NewEvaluator(codec, pgStore, router)
	svc := auth.NewService(issuer, evaluator, codec, pgStore, router)

	// 6. Build router with dependencies
	authMW := mw.NewAuth(svc, codec.Digest)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMin)

	deps := api.Dependencies{
		Auth:      authMW,
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(pgStore, redisCache),
		IssueKeyHandler:     handler.NewIssueKeyHandler(svc),
		ListKeysHandler:     handler.NewListKeysHandler(svc),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(svc),
		CreateTenantHandler: handler.NewCreateTenantHandler(pgStore),
		AssignTenantHandler: handler.NewAssignTenantHandler(router),
		RecordsHandler:      handler.NewRecordsHandler(),
		QueryHandler:        handler.NewQueryHandler(svc),
	}

	httpRouter := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
