package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calebreyes/taskdeck-backend/api/routes"
	"github.com/calebreyes/taskdeck-backend/internal/dispatch"
	"github.com/calebreyes/taskdeck-backend/internal/subscriptions"
	"github.com/calebreyes/taskdeck-backend/pkg/config"
	"github.com/calebreyes/taskdeck-backend/pkg/db"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
	"github.com/calebreyes/taskdeck-backend/pkg/metrics"
	"github.com/calebreyes/taskdeck-backend/pkg/migrate"
	"github.com/calebreyes/taskdeck-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	cache, err := subscriptions.NewRedisCache(redisClient, cfg.Subscriptions.CacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription cache", err)
		os.Exit(1)
	}

	repo := subscriptions.NewRepository(dbClient.DB())
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   repo,
		Cache:  cache,
		DB:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	resolver, err := subscriptions.NewResolver(subscriptions.ResolverParams{
		Repo:   repo,
		Cache:  cache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription resolver", err)
		os.Exit(1)
	}

	// The API only uses the engine for synchronous test deliveries; the
	// dispatch worker owns the event stream.
	engine, err := dispatch.New(dispatch.Params{
		Logger:         logg,
		Resolver:       resolver,
		Metrics:        metrics.NewDeliveryMetrics(prometheus.DefaultRegisterer),
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
		QueueWarnDepth: cfg.Dispatch.QueueWarnDepth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch engine", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, subscriptionService, engine),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
