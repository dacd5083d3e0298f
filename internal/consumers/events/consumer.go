package events

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/calebreyes/taskdeck-backend/internal/dispatch"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

// Enqueuer is the dispatch engine surface the consumer needs.
type Enqueuer interface {
	Dispatch(eventType dispatch.EventType, data map[string]any)
}

// envelope is the wire shape the task/project services publish to the domain
// events topic.
type envelope struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// Consumer bridges the domain events subscription into the webhook dispatch
// queue. Malformed or unknown messages are acked and logged; they would never
// succeed on redelivery.
type Consumer struct {
	subscription *pubsub.Subscriber
	engine       Enqueuer
	logg         *logger.Logger
}

// NewConsumer builds a domain events consumer.
func NewConsumer(subscription *pubsub.Subscriber, engine Enqueuer, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if engine == nil {
		return nil, fmt.Errorf("dispatch engine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		engine:       engine,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logg.Error(logCtx, "failed to decode event envelope", err)
		return processResult{ack: true}
	}

	eventType := dispatch.EventType(env.EventType)
	if !eventType.Known() {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}
	if env.Data == nil {
		c.logg.Error(logCtx, "event envelope missing data", fmt.Errorf("empty data for %s", env.EventType))
		return processResult{ack: true}
	}

	c.engine.Dispatch(eventType, env.Data)
	c.logg.Info(c.logg.WithEventType(logCtx, env.EventType), "event enqueued for webhook dispatch")
	return processResult{ack: true}
}
