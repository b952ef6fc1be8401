// Tutorpipe - multi-stage tutoring pipeline server
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

	"github.com/ashureev/tutorpipe/internal/api"
	"github.com/ashureev/tutorpipe/internal/config"
	"github.com/ashureev/tutorpipe/internal/identity"
	"github.com/ashureev/tutorpipe/internal/lock"
	"github.com/ashureev/tutorpipe/internal/metrics"
	"github.com/ashureev/tutorpipe/internal/middleware"
	"github.com/ashureev/tutorpipe/internal/oracle"
	"github.com/ashureev/tutorpipe/internal/stage"
	"github.com/ashureev/tutorpipe/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "db_driver", cfg.Database.Driver, "lock_backend", cfg.Lock.Backend)

	// Initialize dependencies.
	dsn := cfg.Database.Path
	if cfg.Database.Driver == "postgres" {
		dsn = cfg.Database.URL
	}
	repo, err := store.Open(cfg.Database.Driver, dsn)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := oracle.NewOpenAIClient(oracle.OpenAIConfig{
		APIKey:  cfg.Oracle.APIKey,
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize oracle client", "error", err)
		os.Exit(1)
	}
	generator := oracle.NewResilient(client, oracle.ResilientConfig{
		Timeout:    cfg.Oracle.Timeout,
		MaxRetries: cfg.Oracle.MaxRetries,
	}, m, logger)
	slog.Info("Oracle ready", "model", client.Model(), "timeout", cfg.Oracle.Timeout, "max_retries", cfg.Oracle.MaxRetries)

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Lock.Backend == "redis" {
		redisLocker, err := lock.NewRedisLocker(context.Background(), cfg.Lock.RedisAddr, cfg.Lock.TTL, logger)
		if err != nil {
			slog.Error("Failed to connect to Redis lock backend", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := redisLocker.Close(); closeErr != nil {
				slog.Error("Failed to close Redis client", "error", closeErr)
			}
		}()
		locker = redisLocker
	}

	verifier, err := identity.NewJWTVerifier(identity.JWTConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
	})
	if err != nil {
		slog.Error("Failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	pipeline := stage.New(stage.Config{
		Repo:           repo,
		Oracle:         generator,
		Metrics:        m,
		Logger:         logger,
		Model:          client.Model(),
		RecordAttempts: cfg.Oracle.RecordAttempts,
	})

	// Initialize handlers.
	handler := api.NewHandler(repo, pipeline, locker, m, logger)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	api.Mount(r, handler, healthHandler, verifier)

	// Create server.
	// WriteTimeout must cover the oracle budget: every attempt plus backoff.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.StageBudget(),
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
