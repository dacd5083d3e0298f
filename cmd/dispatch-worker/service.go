package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/calebreyes/taskdeck-backend/pkg/config"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

type dependencyPinger interface {
	Ping(context.Context) error
}

type eventConsumer interface {
	Run(context.Context) error
}

type dispatchEngine interface {
	WaitIdle()
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dependencyPinger
	Redis    dependencyPinger
	PubSub   dependencyPinger
	Consumer eventConsumer
	Engine   dispatchEngine
}

// Service runs the dispatch worker: it consumes domain events from Pub/Sub
// and drains the webhook queue until the context is canceled.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       dependencyPinger
	redis    dependencyPinger
	pubsub   dependencyPinger
	consumer eventConsumer
	engine   dispatchEngine
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("event consumer is required")
	}
	if params.Engine == nil {
		return nil, errors.New("dispatch engine is required")
	}
	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		redis:    params.Redis,
		pubsub:   params.PubSub,
		consumer: params.Consumer,
		engine:   params.Engine,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until the consumer stops, then lets in-flight webhook fan-outs
// settle before returning.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	err := s.consumer.Run(ctx)

	s.logg.Info(ctx, "waiting for in-flight webhook deliveries to settle")
	s.engine.WaitIdle()

	return err
}
