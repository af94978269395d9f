package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smiledesk/clinic-platform/internal/api/router"
	"github.com/smiledesk/clinic-platform/internal/config"
	"github.com/smiledesk/clinic-platform/internal/identity"
	"github.com/smiledesk/clinic-platform/internal/notify"
	"github.com/smiledesk/clinic-platform/internal/observability/metrics"
	"github.com/smiledesk/clinic-platform/internal/scheduling"
	"github.com/smiledesk/clinic-platform/internal/services"
	"github.com/smiledesk/clinic-platform/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server", "env", cfg.Env, "port", cfg.Port)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// The service catalog keeps the database/sql driver it started on.
	catalogDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open catalog db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = catalogDB.Close() }()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, catalog cache disabled", "error", err)
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	clinicMetrics := metrics.NewClinicMetrics(registry)

	identityRepo := identity.NewRepository(pool)
	resolver := identity.NewResolver(identityRepo, logger, clinicMetrics)

	schedulingRepo := scheduling.NewRepository(pool)
	engine := scheduling.NewEngine(pool, schedulingRepo, resolver, logger, clinicMetrics, cfg.Location())

	emailSender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
	if emailSender != nil {
		engine.WithNotifier(notify.NewService(emailSender, identityRepo, logger))
	}

	servicesRepo := services.NewRepository(catalogDB)
	catalog := services.NewCatalog(servicesRepo, redisClient, cfg.CatalogCacheTTL, logger)

	handler := router.New(&router.Config{
		Logger:             logger,
		PatientsHandler:    identity.NewHandler(identityRepo, logger),
		SchedulingHandler:  scheduling.NewHandler(engine, schedulingRepo, logger),
		ServicesHandler:    services.NewHandler(servicesRepo, catalog, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		StaffJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
