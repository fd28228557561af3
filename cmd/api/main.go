package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"genimage/internal/cache"
	"genimage/internal/config"
	"genimage/internal/database"
	"genimage/internal/handlers"
	"genimage/internal/jobs"
	"genimage/internal/lock"
	"genimage/internal/log"
	"genimage/internal/metrics"
	"genimage/internal/queue"
	"genimage/internal/repository"
	"genimage/internal/server"
	"genimage/internal/service"
	"genimage/internal/storage"
	"genimage/internal/tasks"
)

// backend is everything that differs between the postgres and memory drivers.
type backend struct {
	images  repository.ImageStore
	users   repository.UserStore
	blobs   storage.BlobStore
	locker  lock.Locker
	repairs jobs.Enqueuer
	checks  map[string]handlers.Check
	closers []func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx := context.Background()

	var b backend
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		b = memoryBackend(cfg, m, logger)
	default:
		b, err = postgresBackend(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("backend init failed")
		}
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	svc := handlers.Services{
		Images: service.NewImageService(
			b.images, b.users, b.blobs, b.locker,
			service.NewFetcher(cfg.Ingest.Timeout, cfg.Ingest.MaxBytes),
			m, logger.With().Str("component", "ingest").Logger(),
		),
		Ranking: service.NewRankingService(
			b.images, cfg.Ranking.MaxLimit, cfg.Ranking.SearchLimit,
			m, logger.With().Str("component", "ranking").Logger(),
		),
		Reactions: service.NewReactionService(
			b.images, b.users, b.locker, b.repairs,
			m, logger.With().Str("component", "reactions").Logger(),
		),
		Users: service.NewUserService(b.users, logger.With().Str("component", "users").Logger()),
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, svc, b.checks, reg)
	httpServer := server.NewHTTPServer(cfg, logger, m, handlerSet)

	scheduler := jobs.NewScheduler(b.repairs, cfg.Consistency.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, b.closers)
}

func postgresBackend(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (backend, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return backend{}, err
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return backend{}, err
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return backend{}, err
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	return backend{
		images:  repository.NewImageRepository(pool),
		users:   repository.NewUserRepository(pool),
		blobs:   objectStore,
		locker:  lock.NewRedisLocker(redisClient, cfg.Reactions.LockTTL, cfg.Reactions.LockTimeout, logger),
		repairs: queue.NewProducer(redisClient, cfg.Consistency.Stream),
		checks: map[string]handlers.Check{
			"database": pool.Ping,
			"cache":    redisCheck(redisClient),
		},
		closers: []func(){
			pool.Close,
			func() {
				if err := redisClient.Close(); err != nil {
					logger.Error().Err(err).Msg("redis close error")
				}
			},
		},
	}, nil
}

// memoryBackend runs everything in-process. Repairs and scheduled sweeps go
// straight to a local reconciler instead of the redis stream.
func memoryBackend(cfg *config.AppConfig, m *metrics.Metrics, logger zerolog.Logger) backend {
	store := repository.NewMemoryStore()
	locker := lock.NewLocalLocker(cfg.Reactions.LockTimeout)

	reconciler := service.NewReconciler(
		store.Images(), store.Users(), locker, cfg.Consistency.SweepBatch,
		m, logger.With().Str("component", "reconcile").Logger(),
	)
	processor := tasks.NewProcessor(reconciler, logger)

	return backend{
		images:  store.Images(),
		users:   store.Users(),
		blobs:   storage.NewMemoryBlobStore(),
		locker:  locker,
		repairs: tasks.NewInline(processor, time.Minute),
		checks:  map[string]handlers.Check{"store": store.Ping},
	}
}

func redisCheck(client *redis.Client) handlers.Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, closers []func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	for _, closeFn := range closers {
		closeFn()
	}

	logger.Info().Msg("server exited cleanly")
}
