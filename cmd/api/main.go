// Package main is the entry point for the itinerary API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql

	"github.com/pkordes/itinerary/internal/config"
	"github.com/pkordes/itinerary/internal/extract"
	"github.com/pkordes/itinerary/internal/handler"
	"github.com/pkordes/itinerary/internal/middleware"
	"github.com/pkordes/itinerary/internal/policy"
	"github.com/pkordes/itinerary/internal/progress"
	"github.com/pkordes/itinerary/internal/repo"
	"github.com/pkordes/itinerary/internal/service"
	"github.com/pkordes/itinerary/internal/telemetry"
	"github.com/pkordes/itinerary/migrations"
)

const serviceName = "itinerary-api"

// multipartOverhead is added to MaxFiles*MaxFileBytes so form boundaries and
// headers never push a legal upload over the body limit.
const multipartOverhead = 1 << 20

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// --- Logger -----------------------------------------------------------
	logger := telemetry.NewLogger(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ----------------------------------------------------------
	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
	}()

	// --- Archive (optional) -----------------------------------------------
	var itineraryRepo repo.ItineraryRepo
	if cfg.ArchiveEnabled() {
		pool, err := openArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		itineraryRepo = repo.NewItineraryRepo(pool)
		slog.Info("itinerary archive enabled")
	} else {
		slog.Info("itinerary archive disabled; DATABASE_URL not set")
	}

	// --- OCR cache (optional) ---------------------------------------------
	var cache extract.Cache
	if cfg.RedisAddr != "" {
		c, closeCache := extract.NewRedisCache(cfg.RedisAddr, "itinerary:")
		defer func() { _ = closeCache() }()
		cache = c
		slog.Info("ocr cache enabled", "addr", cfg.RedisAddr)
	}

	// --- Services ---------------------------------------------------------
	pipeline, err := extract.New(extract.Settings{
		Mode:       cfg.ExtractMode,
		AIBaseURL:  cfg.AIBaseURL,
		AIAPIKey:   cfg.AIAPIKey,
		AIModel:    cfg.AIModel,
		OCRBaseURL: cfg.OCRBaseURL,
		OCRAPIKey:  cfg.OCRAPIKey,
		OCRModel:   cfg.OCRModel,
		Timeout:    cfg.ExtractTimeout.Std(),
		Cache:      cache,
		CacheTTL:   cfg.CacheTTL.Std(),
	}, logger)
	if err != nil {
		return fmt.Errorf("build extraction pipeline: %w", err)
	}

	registry := progress.NewRegistry()
	itineraries := service.NewItineraryService(itineraryRepo)

	opts := []service.WorkflowOption{
		service.WithConcurrency(cfg.MaxConcurrency),
		service.WithLogger(logger),
	}
	if itineraryRepo != nil {
		opts = append(opts, service.WithArchive(itineraries))
	}
	workflow := service.NewWorkflowService(registry, pipeline, opts...)

	uploads, err := policy.NewEngine(ctx, policy.Limits{
		MaxFiles:     cfg.MaxFiles,
		MaxFileBytes: int64(cfg.MaxFileBytes),
	})
	if err != nil {
		return fmt.Errorf("prepare upload policy: %w", err)
	}

	// --- Router -----------------------------------------------------------
	// Middleware order: RequestID → RealIP → Tracer → Logger → Recoverer → CORS → RateLimiter.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewTracer(serviceName))
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	srvHandler := handler.NewServer(handler.Deps{
		Runs:           workflow,
		Store:          registry,
		Policy:         uploads,
		Itineraries:    itineraries,
		Exports:        service.NewExportService(itineraries),
		Logger:         logger,
		MaxUploadBytes: int64(cfg.MaxFiles)*int64(cfg.MaxFileBytes) + multipartOverhead,
		AllowedOrigins: cfg.CORSOrigins,
	})
	r.Mount("/", srvHandler.Routes())

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout stays zero: progress streams live as long as their run.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "mode", cfg.ExtractMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// openArchive connects to Postgres and applies pending migrations.
func openArchive(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// goose drives database/sql; migrate over a short-lived handle.
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open migration handle: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	slog.Info("database ready", "migrations_applied", applied)
	return pool, nil
}
