package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/api"
	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/logging"
	"github.com/hackgods/clinic-queue/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		deps  []api.Dependency
		store schedule.Store
		repo  appointment.Repository
		dir   identity.Directory
	)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres")

		store = schedule.NewPgStore(pgPool)
		repo = appointment.NewPgRepository(pgPool)
		dir = identity.NewPgDirectory(pgPool)
		deps = append(deps, api.Dependency{Name: "postgres", Pinger: pgPool, Critical: true})
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = schedule.NewMemoryStore()
		repo = appointment.NewMemoryRepository()
		dir = identity.NewMemoryDirectory()
	}

	var (
		cache  schedule.Cache
		locker appointment.DayLocker
	)

	if cfg.LockBackend == config.LockBackendRedis {
		rdb, err := redisclient.NewClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

		cache = redisclient.NewCapacityCache(rdb)
		locker = redisclient.NewDayLocker(rdb, cfg.LockTTL, cfg.LockWait, logger.Named("day-lock"))
		deps = append(deps, api.Dependency{
			Name:   "redis",
			Pinger: api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		})
	} else {
		logger.Warn("using process-local day locks; run a single instance only")
		cache = schedule.NewMemoryCache()
		locker = appointment.NewLocalLocker(cfg.LockWait)
	}

	calc := schedule.NewCalculator(store, cache, cfg.CapacityCacheTTL, logger.Named("capacity"))
	schedules := schedule.NewService(store, calc, logger.Named("schedule"))
	appointments := appointment.NewService(repo, locker, calc, dir, cfg, logger.Named("appointment"),
		appointment.WithMetrics(metrics.NewBookingMetrics(prometheus.DefaultRegisterer)),
	)

	router := api.NewRouter(api.RouterConfig{
		Handler:            api.NewHandler(appointments, schedules, calc, dir, cfg.Location, logger.Named("http")),
		Logger:             logger.Named("http"),
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Dependencies:       deps,
		Gatherer:           prometheus.DefaultGatherer,
		Env:                cfg.Env,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
