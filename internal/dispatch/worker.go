package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/taskdeck-backend/pkg/logger"
	"github.com/calebreyes/taskdeck-backend/pkg/metrics"
)

const (
	// ClientUserAgent identifies the dispatcher on every outbound request.
	ClientUserAgent = "taskdeck-webhooks/1.0"

	HeaderEvent     = "X-Taskdeck-Event"
	HeaderDelivery  = "X-Taskdeck-Delivery"
	HeaderSignature = "X-Taskdeck-Signature"
)

// Outcome is the state of a delivery in its retry state machine.
type Outcome string

const (
	OutcomePending        Outcome = "pending"
	OutcomeSending        Outcome = "sending"
	OutcomeSuccess        Outcome = "success"
	OutcomeRetryScheduled Outcome = "retry_scheduled"
	OutcomeFailed         Outcome = "failed"
)

// DeliveryResult is the terminal record of one (event, subscription)
// delivery. It is reported to the dispatch loop and never surfaced to the
// producer that enqueued the event.
type DeliveryResult struct {
	DeliveryID     uuid.UUID
	SubscriptionID uuid.UUID
	Attempts       int
	Outcome        Outcome
	HTTPStatus     int
	Err            error
}

// deliveryWorker owns the per-attempt retry/backoff state machine for one
// (event, subscription) pair.
type deliveryWorker struct {
	client         *http.Client
	clock          Clock
	logg           *logger.Logger
	metrics        *metrics.DeliveryMetrics
	maxAttempts    int
	attemptTimeout time.Duration
}

type attemptClass int

const (
	attemptSucceeded attemptClass = iota
	attemptRejected
	attemptRetryable
)

func classifyAttempt(status int, err error) attemptClass {
	if err != nil {
		return attemptRetryable
	}
	switch {
	case status >= 200 && status < 300:
		return attemptSucceeded
	case status >= 400 && status < 500:
		return attemptRejected
	default:
		return attemptRetryable
	}
}

// backoffDelay returns 2^attempt seconds, with attempt counted from 1.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// deliver runs the full attempt series for one subscription. The envelope is
// finalized and serialized exactly once, so every attempt transmits identical
// bytes and the signature stays valid across retries.
func (w *deliveryWorker) deliver(ctx context.Context, ev DomainEvent, sub Subscription, base map[string]any) DeliveryResult {
	deliveryID := uuid.New()
	result := DeliveryResult{
		DeliveryID:     deliveryID,
		SubscriptionID: sub.ID,
		Outcome:        OutcomePending,
	}

	envelope := make(map[string]any, len(base)+2)
	for k, v := range base {
		envelope[k] = v
	}
	envelope["timestamp"] = w.clock.Now().UTC().Format(time.RFC3339Nano)
	envelope["delivery_id"] = deliveryID.String()

	body, err := json.Marshal(envelope)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = fmt.Errorf("encoding envelope: %w", err)
		w.logg.Error(ctx, "envelope encoding failed", result.Err)
		return result
	}

	signature := ""
	if sub.Secret != "" {
		signature = Sign(sub.Secret, body)
	}

	ctx = w.logg.WithDeliveryID(ctx, deliveryID.String())
	ctx = w.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"url":             sub.URL,
	})
	started := w.clock.Now()

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		result.Attempts = attempt
		result.Outcome = OutcomeSending
		w.metrics.IncAttempt(string(ev.Type))

		status, err := w.post(ctx, sub.URL, string(ev.Type), deliveryID.String(), signature, body)
		result.HTTPStatus = status

		switch classifyAttempt(status, err) {
		case attemptSucceeded:
			result.Outcome = OutcomeSuccess
			result.Err = nil
			w.metrics.ObserveOutcome(string(ev.Type), string(OutcomeSuccess), w.clock.Now().Sub(started))
			attemptCtx := w.logg.WithFields(ctx, map[string]any{"attempt": attempt, "status": status})
			w.logg.Info(attemptCtx, "webhook delivered")
			return result

		case attemptRejected:
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("endpoint rejected delivery with status %d", status)
			w.metrics.ObserveOutcome(string(ev.Type), string(OutcomeFailed), w.clock.Now().Sub(started))
			attemptCtx := w.logg.WithFields(ctx, map[string]any{"attempt": attempt, "status": status})
			w.logg.Warn(attemptCtx, "webhook rejected by endpoint, not retrying")
			return result

		case attemptRetryable:
			result.Err = err
			if result.Err == nil {
				result.Err = fmt.Errorf("endpoint returned status %d", status)
			}

			if attempt == w.maxAttempts {
				result.Outcome = OutcomeFailed
				w.metrics.ObserveOutcome(string(ev.Type), string(OutcomeFailed), w.clock.Now().Sub(started))
				attemptCtx := w.logg.WithFields(ctx, map[string]any{"attempt": attempt, "error": result.Err.Error()})
				w.logg.Warn(attemptCtx, "webhook delivery failed, attempts exhausted")
				return result
			}

			result.Outcome = OutcomeRetryScheduled
			delay := backoffDelay(attempt)
			attemptCtx := w.logg.WithFields(ctx, map[string]any{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    result.Err.Error(),
			})
			w.logg.Debug(attemptCtx, "webhook delivery retry scheduled")

			if sleepErr := w.clock.Sleep(ctx, delay); sleepErr != nil {
				result.Outcome = OutcomeFailed
				result.Err = sleepErr
				w.metrics.ObserveOutcome(string(ev.Type), string(OutcomeFailed), w.clock.Now().Sub(started))
				w.logg.Warn(ctx, "webhook delivery canceled during backoff")
				return result
			}
		}
	}
	return result
}

func (w *deliveryWorker) post(ctx context.Context, url, eventType, deliveryID, signature string, body []byte) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, w.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ClientUserAgent)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
