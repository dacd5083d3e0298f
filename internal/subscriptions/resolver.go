package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/calebreyes/taskdeck-backend/internal/dispatch"
	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

// ResolverParams groups dependencies for the dispatch resolver.
type ResolverParams struct {
	Repo   Repository
	Cache  Cache
	Logger *logger.Logger
}

// Resolver adapts the subscription store to the dispatch engine. Lookups go
// through the project-keyed cache when one is configured; cache failures fall
// back to the repository.
type Resolver struct {
	repo  Repository
	cache Cache
	logg  *logger.Logger
}

// NewResolver builds a dispatch resolver backed by the subscription store.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Resolver{
		repo:  params.Repo,
		cache: params.Cache,
		logg:  params.Logger,
	}, nil
}

var _ dispatch.SubscriptionResolver = (*Resolver)(nil)

// Resolve returns the project's active subscriptions that opted into the
// event type.
func (r *Resolver) Resolve(ctx context.Context, projectID uuid.UUID, eventType dispatch.EventType) ([]dispatch.Subscription, error) {
	records, err := r.activeForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]dispatch.Subscription, 0, len(records))
	for _, rec := range records {
		sub := toDispatchSubscription(rec)
		if sub.Matches(eventType) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *Resolver) activeForProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, projectID)
		if err != nil {
			r.logg.Warn(ctx, fmt.Sprintf("subscription cache read: %v", err))
		} else if ok {
			return cached, nil
		}
	}

	records, err := r.repo.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, projectID, records); err != nil {
			r.logg.Warn(ctx, fmt.Sprintf("subscription cache write: %v", err))
		}
	}
	return records, nil
}

func toDispatchSubscription(rec models.WebhookSubscription) dispatch.Subscription {
	events := make([]dispatch.EventType, 0, len(rec.Events))
	for _, raw := range rec.Events {
		events = append(events, dispatch.EventType(raw))
	}
	secret := ""
	if rec.Secret != nil {
		secret = *rec.Secret
	}
	return dispatch.Subscription{
		ID:        rec.ID,
		ProjectID: rec.ProjectID,
		URL:       rec.URL,
		Events:    events,
		Active:    rec.Active,
		Secret:    secret,
	}
}
