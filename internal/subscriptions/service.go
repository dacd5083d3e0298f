package subscriptions

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/calebreyes/taskdeck-backend/internal/dispatch"
	"github.com/calebreyes/taskdeck-backend/pkg/db"
	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
	"github.com/calebreyes/taskdeck-backend/pkg/errors"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

// uniqueProjectURLConstraint matches the index created by the subscriptions
// migration: one subscription per (project, url).
const uniqueProjectURLConstraint = "uq_webhook_subscriptions_project_url"

// TxRunner executes fn inside a database transaction. *db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo   Repository
	Cache  Cache
	DB     TxRunner
	Logger *logger.Logger
}

// Service orchestrates webhook subscription management. Writes invalidate the
// project's cached subscription set so the resolver sees them promptly.
type Service struct {
	repo  Repository
	cache Cache
	db    TxRunner
	logg  *logger.Logger
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{
		repo:  params.Repo,
		cache: params.Cache,
		db:    params.DB,
		logg:  params.Logger,
	}, nil
}

// runTx executes fn against a transaction-bound repository. Without a
// TxRunner the statements run directly on the pooled connection.
func (s *Service) runTx(ctx context.Context, fn func(repo Repository) error) error {
	if s.db == nil {
		return fn(s.repo)
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

// CreateInput carries the fields accepted when registering an endpoint.
type CreateInput struct {
	ProjectID uuid.UUID
	URL       string
	Events    []string
	Secret    *string
	Active    *bool
}

// UpdateInput carries the mutable subscription fields; nil means unchanged.
type UpdateInput struct {
	URL    *string
	Events []string
	Secret *string
	Active *bool
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.WebhookSubscription, error) {
	if input.ProjectID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "project id is required")
	}
	if err := validateURL(input.URL); err != nil {
		return nil, err
	}
	if err := validateEvents(input.Events); err != nil {
		return nil, err
	}

	sub := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: input.ProjectID,
		URL:       input.URL,
		Events:    pq.StringArray(input.Events),
		Active:    true,
		Secret:    input.Secret,
	}
	if input.Active != nil {
		sub.Active = *input.Active
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		if db.IsUniqueViolation(err, uniqueProjectURLConstraint) {
			return nil, errors.New(errors.CodeConflict, "a webhook with this url already exists for the project")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "creating subscription")
	}

	s.invalidate(ctx, sub.ProjectID)
	s.logg.Info(s.logg.WithProjectID(ctx, sub.ProjectID.String()), "webhook subscription created")
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "subscription not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading subscription")
	}
	return sub, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	subs, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing subscriptions")
	}
	return subs, nil
}

// Update applies the changed fields atomically: the read-modify-write runs
// inside one transaction so concurrent updates cannot interleave.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.WebhookSubscription, error) {
	if input.URL != nil {
		if err := validateURL(*input.URL); err != nil {
			return nil, err
		}
	}
	if input.Events != nil {
		if err := validateEvents(input.Events); err != nil {
			return nil, err
		}
	}

	var sub *models.WebhookSubscription
	err := s.runTx(ctx, func(repo Repository) error {
		found, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if input.URL != nil {
			found.URL = *input.URL
		}
		if input.Events != nil {
			found.Events = pq.StringArray(input.Events)
		}
		if input.Secret != nil {
			found.Secret = input.Secret
		}
		if input.Active != nil {
			found.Active = *input.Active
		}
		if err := repo.Update(ctx, found); err != nil {
			return err
		}
		sub = found
		return nil
	})
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "subscription not found")
		}
		if db.IsUniqueViolation(err, uniqueProjectURLConstraint) {
			return nil, errors.New(errors.CodeConflict, "a webhook with this url already exists for the project")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "updating subscription")
	}

	s.invalidate(ctx, sub.ProjectID)
	return sub, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var projectID uuid.UUID
	err := s.runTx(ctx, func(repo Repository) error {
		sub, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		projectID = sub.ProjectID
		return repo.Delete(ctx, sub.ID)
	})
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "subscription not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "deleting subscription")
	}
	s.invalidate(ctx, projectID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, projectID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, projectID); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("invalidating subscription cache: %v", err))
	}
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New(errors.CodeValidation, "url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.New(errors.CodeValidation, "url must be a valid http(s) endpoint")
	}
	return nil
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return errors.New(errors.CodeValidation, "at least one event type is required")
	}
	for _, raw := range events {
		if !dispatch.EventType(raw).Known() {
			return errors.New(errors.CodeValidation, fmt.Sprintf("unknown event type %q", raw))
		}
	}
	return nil
}
