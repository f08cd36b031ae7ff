package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/adocshq/adocs/internal/adapter/fsstore"
	adocshttp "github.com/adocshq/adocs/internal/adapter/http"
	"github.com/adocshq/adocs/internal/adapter/litellm"
	adocsotel "github.com/adocshq/adocs/internal/adapter/otel"
	"github.com/adocshq/adocs/internal/adapter/postgres"
	"github.com/adocshq/adocs/internal/adapter/ristretto"
	"github.com/adocshq/adocs/internal/config"
	"github.com/adocshq/adocs/internal/knowledge"
	"github.com/adocshq/adocs/internal/logger"
	"github.com/adocshq/adocs/internal/middleware"
	"github.com/adocshq/adocs/internal/resilience"
	"github.com/adocshq/adocs/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "kb":
			if err := runKB(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "config":
			if err := runConfig(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "migrate":
			if err := runMigrate(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"gateway", cfg.Gateway.URL,
		"knowledge_base", cfg.Knowledge.Path,
	)

	ctx := context.Background()

	shutdownTracer := adocsotel.InitTracer("adocs")
	defer func() { _ = shutdownTracer(ctx) }()

	metrics, err := adocsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	base, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return fmt.Errorf("knowledge base: %w", err)
	}
	log.Info("knowledge base loaded", "entries", base.Len())

	gateway := litellm.NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	gateway.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	contentCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer contentCache.Close()

	// --- Services ---

	db := postgres.NewStore(pool)
	contentStore := fsstore.New(cfg.Docs.OutputDir)
	configs := service.NewRepoConfigStore(cfg.Docs.RepoConfigPath, log)

	handlers := &adocshttp.Handlers{
		Generator: service.NewGenerator(base, gateway, gateway, db, *cfg, log, metrics),
		Injector:  service.NewInjector(configs, contentStore, contentCache, log, metrics),
		Content:   service.NewContentGenerator(gateway, contentStore, cfg.Generator, log),
		Configs:   configs,
		DB:        db,
	}

	// --- HTTP ---

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(5 * time.Minute))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "adocs")
	})

	adocshttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
