package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"genimage/internal/cache"
	"genimage/internal/config"
	"genimage/internal/database"
	"genimage/internal/lock"
	"genimage/internal/log"
	"genimage/internal/metrics"
	"genimage/internal/queue"
	"genimage/internal/repository"
	"genimage/internal/service"
	"genimage/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("process", "worker").Logger()

	if cfg.Store.Driver != config.StoreDriverPostgres {
		logger.Fatal().Str("driver", cfg.Store.Driver).Msg("worker needs the postgres store driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	reconciler := service.NewReconciler(
		repository.NewImageRepository(pool),
		repository.NewUserRepository(pool),
		lock.NewRedisLocker(client, cfg.Reactions.LockTTL, cfg.Reactions.LockTimeout, logger),
		cfg.Consistency.SweepBatch,
		m,
		logger,
	)
	processor := tasks.NewProcessor(reconciler, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Consistency.Stream,
		cfg.Consistency.Group,
		cfg.Consistency.Consumer,
		cfg.Consistency.ClaimInterval,
		logger,
		processor,
	)

	metricsServer := &http.Server{
		Addr:              cfg.Consistency.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped unexpectedly")
		return
	}
	logger.Info().Msg("worker exited cleanly")
}
