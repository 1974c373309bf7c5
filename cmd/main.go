package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/okian/driftboard/internal/adapters/cache"
	"github.com/okian/driftboard/internal/adapters/http/api"
	"github.com/okian/driftboard/internal/adapters/http/site"
	"github.com/okian/driftboard/internal/adapters/http/swagger"
	"github.com/okian/driftboard/internal/adapters/repository"
	"github.com/okian/driftboard/internal/adapters/repository/postgres"
	service "github.com/okian/driftboard/internal/app"
	"github.com/okian/driftboard/internal/config"
	"github.com/okian/driftboard/internal/leaderboard"
	"github.com/okian/driftboard/pkg/logger"
	"github.com/okian/driftboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	storeMetricsInterval      = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// The custom registry carries its own system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "driftboard stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	svcOpts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithHistoryLimit(cfg.HistoryLimit),
		service.WithRecentLimit(cfg.RecentLimit),
		service.WithEngineOptions(
			leaderboard.WithDefaultLimits(cfg.DefaultLeaderboardLimit, cfg.DefaultWinnersLimit),
			leaderboard.WithMaxLimit(cfg.MaxLeaderboardLimit),
		),
	}
	if cfg.RedisURL != "" {
		client, err := cache.Dial(ctx, cfg.RedisURL)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("name cache: %w", err)
		}
		defer closeRedis(ctx, log, client)
		names := cache.NewNameCache(store, client,
			cache.WithTTL(cfg.NameCacheTTL()),
			cache.WithLogger(log.Named("name_cache")))
		svcOpts = append(svcOpts, service.WithProfileStore(names))
		log.Info(ctx, "display name cache enabled", logger.Duration("ttl", cfg.NameCacheTTL()))
	}

	svc := service.New(store, svcOpts...)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	mux := newMux(ctx, cfg, svc, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return api.WrapKind("listen "+cfg.Addr, api.ErrServe, err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers the business API, the docs routes and the landing page.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithLogger(log.Named("api")),
		api.WithAPIKey(cfg.APIKey),
		api.WithIdentityHeaders(cfg.PlayerHeader, cfg.EmailHeader),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	).Register(ctx, mux)
	return mux
}

// openStore builds the record store selected by store_driver.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Info(ctx, "using in-memory record store")
		return repository.NewMemStore(ctx, repository.WithMetricsUpdateInterval(storeMetricsInterval)), nil
	case config.DriverPostgres:
		pc := postgres.DefaultPoolConfig()
		if cfg.DatabaseMaxConns > 0 {
			pc.MaxConns = int32(cfg.DatabaseMaxConns) //nolint:gosec // bounded by config validation
		}
		conn, err := postgres.Connect(ctx, cfg.DatabaseURL, pc)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.DatabaseMigrate {
			if err := postgres.Migrate(ctx, conn); err != nil {
				conn.Close()
				return nil, err
			}
			log.Info(ctx, "database migrations applied")
		}
		return postgres.NewStore(ctx, conn,
			postgres.WithQueryTimeout(cfg.QueryTimeout()),
			postgres.WithMetricsUpdateInterval(storeMetricsInterval)), nil
	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

func closeRedis(ctx context.Context, log logger.Logger, client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Warn(ctx, "failed to close redis client", logger.Error(err))
	}
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
