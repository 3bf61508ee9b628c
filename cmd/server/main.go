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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/chorex/chore-engine/internal/alert"
	"github.com/chorex/chore-engine/internal/api"
	"github.com/chorex/chore-engine/internal/config"
	"github.com/chorex/chore-engine/internal/engine"
	"github.com/chorex/chore-engine/internal/exposure"
	"github.com/chorex/chore-engine/internal/fxrate"
	"github.com/chorex/chore-engine/internal/metrics"
	"github.com/chorex/chore-engine/internal/position"
	"github.com/chorex/chore-engine/internal/quote"
	"github.com/chorex/chore-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.URL != "" {
			opt, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Market data and reference data ---
	fx := fxrate.NewConverter(cfg.DecimalRates())
	quotes := quote.NewMemorySource()
	positions := position.NewMemoryCache()

	limiter := exposure.NewLimiter(
		config.DecimalLimit(cfg.Limits.MaxPerSecurityNotional),
		config.DecimalLimit(cfg.Limits.MaxPerIssuerNotional),
	)

	// --- Engine ---
	policy := engine.Policy{
		InstanceID:               cfg.Engine.InstanceID,
		PauseFulfillPostChoreDOD: cfg.Engine.PauseFulfillPostChoreDOD,
		ResidualMarkSeconds:      cfg.Engine.ResidualMarkSeconds,
	}
	eng := engine.New(engine.Deps{
		Store:     st,
		Quotes:    quotes,
		FX:        fx,
		Alerts:    alert.NewSlogSink(slog.Default()),
		Positions: positions,
		Limiter:   limiter,
		Gateway:   &engine.LogGateway{},
		Callbacks: engine.NewLogCallbacks(slog.Default()),
	}, policy)

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()

	svc := api.NewService(eng, st, wsHub)

	// --- Residual chore sweep ---
	if cfg.Engine.ResidualMarkSeconds > 0 {
		sched := cron.New()
		_, err := sched.AddFunc(cfg.Engine.SweepCron, func() {
			if err := eng.SweepExpired(context.Background()); err != nil {
				slog.Error("residual sweep failed", "err", err)
			}
		})
		if err != nil {
			slog.Error("invalid sweep cron expression", "expr", cfg.Engine.SweepCron, "err", err)
			os.Exit(1)
		}
		sched.Start()
		cleanup = append(cleanup, func() { sched.Stop() })
		slog.Info("residual sweep scheduled", "cron", cfg.Engine.SweepCron,
			"residual_mark_seconds", cfg.Engine.ResidualMarkSeconds)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"chore-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time chore updates.
		r.Get("/ws", wsHub.HandleWS)

		// Chore lifecycle.
		r.Post("/chore-events", svc.HandleChoreEvent)
		r.Post("/deals", svc.HandleDeal)

		// Snapshot queries.
		r.Get("/chores", svc.ListOpenChores)
		r.Get("/chores/{choreID}", svc.GetChore)

		// Manual residual sweep trigger.
		r.Post("/sweep", svc.SweepExpired)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chore-engine listening", "port", cfg.Server.Port, "instance", cfg.Engine.InstanceID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down chore-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("chore-engine stopped")
}
