package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mnemolabs/reprime/internal/api/handlers"
	mw "github.com/mnemolabs/reprime/internal/api/middleware"
	"github.com/mnemolabs/reprime/internal/config"
	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/mnemolabs/reprime/internal/service"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Watchdog  *service.WatchdogService
	Scheduler *service.RescueScheduler
	Metrics   *mw.MetricsCollector

	startTime time.Time
}

// Deps are the wired collaborators the HTTP surface exposes. Construction
// and configuration of services happens in the CLI layer; the App only
// routes to them.
type Deps struct {
	ItemStore domain.ItemStore
	Priming   *service.PrimingService
	Watchdog  *service.WatchdogService
	Scheduler *service.RescueScheduler
}

func NewApp(deps Deps, logger *zap.Logger) *App {
	itemHandler := handlers.NewItemHandler(deps.ItemStore)
	rescueHandler := handlers.NewRescueHandler(deps.ItemStore, deps.Watchdog, deps.Scheduler, deps.Priming)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Watchdog:  deps.Watchdog,
		Scheduler: deps.Scheduler,
		Metrics:   mw.NewMetricsCollector(),
		startTime: time.Now(),
	}

	deps.Watchdog.SetCounters(app.Metrics)
	deps.Scheduler.SetCounters(app.Metrics)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.Metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(deps.ItemStore))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Post("/", itemHandler.Create)
			r.Get("/", itemHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetByID)
				r.Delete("/", itemHandler.Archive)
				r.Post("/touch", itemHandler.Touch)
				r.Post("/prime", rescueHandler.Prime)
			})
		})

		r.Route("/rescue", func(r chi.Router) {
			r.Post("/sweep", rescueHandler.Sweep)
			r.Get("/pending", rescueHandler.Pending)
			r.Post("/cycles/{tier}/run", rescueHandler.RunCycle)
		})
	})

	return app
}

func healthHandler(store domain.ItemStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		snapshot := app.Metrics.Snapshot()

		pending := make(map[string]int, len(domain.AllTiers()))
		for _, tier := range domain.AllTiers() {
			pending[string(tier)] = app.Scheduler.PendingCount(tier)
		}

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  snapshot.Requests,
			"error_count":    snapshot.Errors,
			"sweep_count":    snapshot.Sweeps,
			"session_count":  snapshot.Sessions,
			"rescue_count":   snapshot.Rescues,
			"pending":        pending,
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
