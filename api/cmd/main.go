package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhq/registration-service/internal/audit"
	"github.com/gatherhq/registration-service/internal/config"
	"github.com/gatherhq/registration-service/internal/infrastructure/postgres"
	"github.com/gatherhq/registration-service/internal/infrastructure/rabbitmq"
	"github.com/gatherhq/registration-service/internal/infrastructure/redis"
	"github.com/gatherhq/registration-service/internal/lock"
	"github.com/gatherhq/registration-service/internal/metrics"
	"github.com/gatherhq/registration-service/internal/pkg/logger"
	"github.com/gatherhq/registration-service/internal/security"
	"github.com/gatherhq/registration-service/internal/service"
	"github.com/gatherhq/registration-service/internal/transport/rest"
	"github.com/gatherhq/registration-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "registration-service").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()

		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	repo := postgres.New(dbPool)
	if err := repo.EnsureSchema(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	// ---- Redis ----
	cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()

		// Best-effort ping; invalidation degrades gracefully without redis
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- Roster lock ----
	var locks lock.Keyed
	switch cfg.LockBackend {
	case "redis":
		locks = redis.NewLease(cache.Client, cfg.LockLeaseTTL)
		log.Info().Dur("lease_ttl", cfg.LockLeaseTTL).Msg("using distributed roster lock")
	default:
		locks = lock.NewManager()
		log.Info().Msg("using in-process roster lock")
	}

	// ---- RabbitMQ notifier ----
	notifier, err := rabbitmq.NewNotifier(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	defer notifier.Close()
	log.Info().Str("exchange", cfg.RabbitExchange).Msg("rabbitmq connected")

	// ---- Services ----
	auditLog := audit.New(log)
	engine := service.NewEngine(repo, cache, locks, notifier, service.NewOrganizerPermissions(), auditLog, log, cfg.LockTimeout)
	deleter := service.NewDeleter(repo, cache, auditLog, log)
	reconciler := service.NewReconciler(repo, cache, auditLog, log)
	programs := service.NewProgramSyncer(repo, log)
	gate := service.NewReminderGate(repo, auditLog, log)

	// ---- Reminder worker ----
	if cfg.ReminderEnabled {
		w := worker.NewReminderWorker(repo, gate, notifier, log, cfg.ReminderLead, cfg.ReminderInterval)
		w.Start(rootCtx)
		log.Info().Dur("lead", cfg.ReminderLead).Msg("reminder worker started")
	}

	// ---- API server ----
	apiHandler := rest.NewRouter(rest.RouterDeps{
		Limiter:   cache,
		Handler:   rest.NewHandler(engine, deleter, reconciler, programs, repo),
		Verifier:  security.NewHS256Verifier(cfg.JWTSecret),
		JWTIssuer: cfg.JWTIssuer,
	})

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// ---- Ops server (health + metrics) ----
	opsRouter := chi.NewRouter()
	opsRouter.Use(middleware.Recoverer)
	opsRouter.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := dbPool.Ping(ctx); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	opsRouter.Handle("/metrics", metrics.Handler())

	opsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.OpsPort),
		Handler:           opsRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api server starting")
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		log.Info().Int("port", cfg.OpsPort).Msg("ops server starting")
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = opsSrv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
