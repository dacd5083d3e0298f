package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/calebreyes/taskdeck-backend/pkg/logger"
	"github.com/calebreyes/taskdeck-backend/pkg/metrics"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 15 * time.Second
	defaultQueueWarnDepth = 1000
)

// Drop reasons reported to metrics when an event never reaches fan-out.
const (
	DropReasonNoProjectID   = "no_project_id"
	DropReasonResolverError = "resolver_error"
)

// Params configures a Dispatcher.
type Params struct {
	Logger         *logger.Logger
	Resolver       SubscriptionResolver
	Metrics        *metrics.DeliveryMetrics
	HTTPClient     *http.Client
	Clock          Clock
	BaseContext    context.Context
	MaxAttempts    int
	AttemptTimeout time.Duration
	QueueWarnDepth int
}

// Dispatcher owns the event queue and the single-flight drain loop. One
// long-lived instance is constructed at process startup and injected into
// every producing call site; enqueueing is O(1) and never blocks.
type Dispatcher struct {
	logg           *logger.Logger
	resolver       SubscriptionResolver
	metrics        *metrics.DeliveryMetrics
	worker         *deliveryWorker
	clock          Clock
	baseCtx        context.Context
	queueWarnDepth int

	mu       sync.Mutex
	queue    []DomainEvent
	draining bool
	wg       sync.WaitGroup
}

func New(params Params) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("subscription resolver is required")
	}

	clock := params.Clock
	if clock == nil {
		clock = realClock{}
	}
	client := params.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	baseCtx := params.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	attemptTimeout := params.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	warnDepth := params.QueueWarnDepth
	if warnDepth <= 0 {
		warnDepth = defaultQueueWarnDepth
	}

	return &Dispatcher{
		logg:           params.Logger,
		resolver:       params.Resolver,
		metrics:        params.Metrics,
		clock:          clock,
		baseCtx:        baseCtx,
		queueWarnDepth: warnDepth,
		worker: &deliveryWorker{
			client:         client,
			clock:          clock,
			logg:           params.Logger,
			metrics:        params.Metrics,
			maxAttempts:    maxAttempts,
			attemptTimeout: attemptTimeout,
		},
	}, nil
}

// Dispatch enqueues a domain event for webhook fan-out and returns
// immediately. Delivery outcomes are observable through logs and metrics
// only; nothing propagates back to the caller.
func (d *Dispatcher) Dispatch(eventType EventType, data map[string]any) {
	ev := DomainEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Data:       data,
		EnqueuedAt: d.clock.Now(),
	}

	d.mu.Lock()
	d.queue = append(d.queue, ev)
	depth := len(d.queue)
	start := !d.draining
	if start {
		d.draining = true
		d.wg.Add(1)
	}
	d.mu.Unlock()

	d.metrics.SetQueueDepth(depth)
	if depth >= d.queueWarnDepth {
		ctx := d.logg.WithField(d.baseCtx, "queue_depth", depth)
		d.logg.Warn(ctx, "dispatch queue depth above threshold")
	}

	if start {
		go d.drain()
	}
}

// TestDelivery sends a synthetic webhook.test event to a single subscription
// and returns the settled result. It bypasses the queue so the caller sees
// the outcome synchronously.
func (d *Dispatcher) TestDelivery(ctx context.Context, sub Subscription) DeliveryResult {
	ev := DomainEvent{
		ID:   uuid.New(),
		Type: EventWebhookTest,
		Data: map[string]any{
			"project_id":      sub.ProjectID.String(),
			"subscription_id": sub.ID.String(),
		},
		EnqueuedAt: d.clock.Now(),
	}
	ctx = d.logg.WithEventType(ctx, string(ev.Type))
	ctx = d.logg.WithField(ctx, "event_id", ev.ID.String())
	return d.worker.deliver(ctx, ev, sub, BuildPayload(ev.Type, ev.Data))
}

// WaitIdle blocks until the drain loop has settled every enqueued event.
// Callers must stop dispatching before waiting: a Dispatch that races
// WaitIdle can restart the drain from zero, which sync.WaitGroup forbids
// concurrently with Wait. Shutdown paths call it after the event consumer
// has stopped; tests call it after their last Dispatch.
func (d *Dispatcher) WaitIdle() {
	d.wg.Wait()
}

// drain removes events strictly FIFO, settling the full fan-out of each
// event before dequeuing the next. It exits once the queue is empty; the
// next enqueue starts a new drain.
func (d *Dispatcher) drain() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			d.metrics.SetQueueDepth(0)
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		depth := len(d.queue)
		d.mu.Unlock()

		d.metrics.SetQueueDepth(depth)
		d.processEvent(d.baseCtx, ev)
	}
}

// processEvent resolves subscriptions and fans out one delivery goroutine
// per target. A panic anywhere in resolution or fan-out is recovered so a
// poisoned event cannot terminate the loop.
func (d *Dispatcher) processEvent(ctx context.Context, ev DomainEvent) {
	ctx = d.logg.WithEventType(ctx, string(ev.Type))
	ctx = d.logg.WithField(ctx, "event_id", ev.ID.String())
	defer func() {
		if rec := recover(); rec != nil {
			d.logg.Error(ctx, "event fan-out panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	projectID, ok := ProjectIDFromEvent(ev.Data)
	if !ok {
		d.metrics.IncDropped(DropReasonNoProjectID)
		d.logg.Warn(ctx, "event has no routable project id, dropping")
		return
	}
	ctx = d.logg.WithProjectID(ctx, projectID.String())

	subs, err := d.resolver.Resolve(ctx, projectID, ev.Type)
	if err != nil {
		d.metrics.IncDropped(DropReasonResolverError)
		d.logg.Error(ctx, "subscription resolution failed, dropping event", err)
		return
	}

	targets := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Active && sub.Matches(ev.Type) {
			targets = append(targets, sub)
		}
	}
	if len(targets) == 0 {
		d.logg.Debug(ctx, "no matching subscriptions for event")
		return
	}

	results := make([]DeliveryResult, len(targets))
	base := BuildPayload(ev.Type, ev.Data)

	var wg sync.WaitGroup
	for i, sub := range targets {
		wg.Add(1)
		go func(i int, sub Subscription) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = DeliveryResult{
						SubscriptionID: sub.ID,
						Outcome:        OutcomeFailed,
						Err:            fmt.Errorf("panic: %v", rec),
					}
				}
			}()
			results[i] = d.worker.deliver(ctx, ev, sub, base)
		}(i, sub)
	}
	wg.Wait()

	var errs error
	succeeded := 0
	for _, res := range results {
		if res.Outcome == OutcomeSuccess {
			succeeded++
			continue
		}
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", res.SubscriptionID, res.Err))
		}
	}

	ctx = d.logg.WithFields(ctx, map[string]any{
		"deliveries": len(results),
		"succeeded":  succeeded,
		"failed":     len(results) - succeeded,
	})
	if errs != nil {
		ctx = d.logg.WithField(ctx, "error", errs.Error())
		d.logg.Warn(ctx, "event fan-out settled with failures")
		return
	}
	d.logg.Info(ctx, "event fan-out settled")
}
