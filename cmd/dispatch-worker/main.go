package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calebreyes/taskdeck-backend/internal/consumers/events"
	"github.com/calebreyes/taskdeck-backend/internal/dispatch"
	"github.com/calebreyes/taskdeck-backend/internal/subscriptions"
	"github.com/calebreyes/taskdeck-backend/pkg/config"
	"github.com/calebreyes/taskdeck-backend/pkg/db"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
	"github.com/calebreyes/taskdeck-backend/pkg/metrics"
	"github.com/calebreyes/taskdeck-backend/pkg/migrate"
	"github.com/calebreyes/taskdeck-backend/pkg/pubsub"
	"github.com/calebreyes/taskdeck-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatch-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "dispatch-worker"

	logg = logger.New(logger.Options{
		ServiceName: "dispatch-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	cache, err := subscriptions.NewRedisCache(redisClient, cfg.Subscriptions.CacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription cache", err)
		os.Exit(1)
	}

	resolver, err := subscriptions.NewResolver(subscriptions.ResolverParams{
		Repo:   subscriptions.NewRepository(dbClient.DB()),
		Cache:  cache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription resolver", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, err := dispatch.New(dispatch.Params{
		Logger:         logg,
		Resolver:       resolver,
		Metrics:        metrics.NewDeliveryMetrics(prometheus.DefaultRegisterer),
		BaseContext:    ctx,
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
		QueueWarnDepth: cfg.Dispatch.QueueWarnDepth,
	})
	if err != nil {
		logg.Error(ctx, "failed to create dispatch engine", err)
		os.Exit(1)
	}

	consumer, err := events.NewConsumer(pubsubClient.EventsSubscriber(), engine, logg)
	if err != nil {
		logg.Error(ctx, "failed to create events consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
		Engine:   engine,
	})
	if err != nil {
		logg.Error(ctx, "failed to create dispatch worker", err)
		os.Exit(1)
	}

	go serveMetrics(ctx, cfg, logg)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting dispatch worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "dispatch worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "dispatch worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
