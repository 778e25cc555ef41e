package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"price-dashboard/internal/config"
	"price-dashboard/internal/middleware"
	"price-dashboard/internal/modelstore"
	"price-dashboard/internal/observability"
	"price-dashboard/internal/server"
	"price-dashboard/internal/services"
	"price-dashboard/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	dataLoadTimeout = 2 * time.Minute
	jobTimeout      = 5 * time.Minute
	limiterSweep    = time.Minute
	cacheMaxAge     = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func newPricing(cfg *config.Config, models services.ModelSource, logger *slog.Logger) *services.Pricing {
	return services.NewPricing(services.Options{
		Loader: services.NewLoader(cfg.Data.CacheDir, logger),
		Sources: services.Sources{
			SellMeta:     cfg.Data.SellMetaFile,
			Transactions: cfg.Data.TransactionsFile,
			DateInfo:     cfg.Data.DateInfoFile,
		},
		Models:             models,
		Workers:            cfg.Pricing.Workers,
		DefaultBuyingPrice: cfg.Pricing.DefaultBuyingPrice,
		DerivedCostRatio:   cfg.Pricing.DerivedCostRatio,
		Logger:             logger,
	})
}

func newHandler(cfg *config.Config, srv http.Handler, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)
	return middlewareChain(srv)
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := modelstore.Open(cfg.Models.DBPath, logger)
	if err != nil {
		logger.Error("failed to open model store", "error", err, "path", cfg.Models.DBPath)
		os.Exit(1)
	}

	pricingService := newPricing(cfg, store, observability.Component(logger, "pricing"))

	loadCtx, cancel := context.WithTimeout(ctx, dataLoadTimeout)
	start := time.Now()
	if err := pricingService.Load(loadCtx); err != nil {
		// Serve degraded; POST /admin/reload or the schedule can recover.
		logger.Error("failed to load pricing data", "error", err)
	} else {
		logger.Info("pricing data loaded successfully", "duration", time.Since(start))
	}
	cancel()

	scheduler := services.NewScheduler(jobTimeout, logger)
	if cfg.Data.ReloadSchedule != "" {
		if err := scheduler.AddJob(cfg.Data.ReloadSchedule, services.ReloadJob{Pricing: pricingService}); err != nil {
			logger.Error("failed to schedule data reload", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(pricingService, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	go rateLimiter.Run(limiterCtx, limiterSweep)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, srv, rateLimiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("scheduler", scheduler.Stop)
	gracefulServer.RegisterShutdownHook("rate-limiter", func(ctx context.Context) error {
		stopLimiter()
		return nil
	})
	gracefulServer.RegisterShutdownHook("model-store", func(ctx context.Context) error {
		logger.Info("closing model store")
		return store.Close()
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
