package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/okian/chargeview/internal/adapters/http/api"
	"github.com/okian/chargeview/internal/adapters/http/site"
	"github.com/okian/chargeview/internal/adapters/http/swagger"
	"github.com/okian/chargeview/internal/adapters/repository"
	service "github.com/okian/chargeview/internal/app"
	"github.com/okian/chargeview/internal/config"
	"github.com/okian/chargeview/internal/domain/reconcile"
	"github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// A missing .env is fine; anything else is worth knowing about.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger format comes from config, so it isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := newService(ctx, cfg, log)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("backend_url", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout. Stream connections are hijacked and
	// are closed when the service stops and its store closes subscriptions.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// newService builds the service from configuration. A Redis mirror is
// attached when redis_addr is set; an unreachable Redis is logged and the
// service runs without it.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) *service.Service {
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithBackendURL(cfg.BackendURL),
		service.WithPollInterval(cfg.PollInterval()),
		service.WithFetchTimeout(cfg.FetchTimeout()),
		service.WithTriggerQueueSize(cfg.TriggerQueueSize),
		service.WithReconcilerOptions(
			reconcile.WithPalette(cfg.Palette),
			reconcile.WithCostWindow(cfg.CostWindow),
			reconcile.WithRadarLimit(cfg.RadarLimit),
			reconcile.WithEnergyScale(cfg.EnergyScale),
		),
	}

	if cfg.RedisAddr != "" {
		client, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn(ctx, "redis mirror disabled", logger.String("redis_addr", cfg.RedisAddr), logger.Error(err))
		} else {
			log.Info(ctx, "redis mirror enabled", logger.String("redis_addr", cfg.RedisAddr), logger.String("key", cfg.RedisKey))
			opts = append(opts, service.WithMirror(repository.NewRedisMirror(client, cfg.RedisKey, cfg.RedisTTL())))
		}
	}

	return service.New(opts...)
}

// newMux registers every HTTP surface: API, dashboard page and API docs.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc, api.WithStreamWriteTimeout(cfg.StreamWriteTimeout()))
	apiServer.Register(ctx, mux)

	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that are sampled rather than pushed.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if pending, ok := stats["pendingTriggers"].(int); ok {
		metrics.UpdateTriggerPending(pending)
	}
	if connected, ok := stats["connected"].(bool); ok {
		metrics.UpdateConnected(connected)
	}
}
