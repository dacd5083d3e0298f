package subscriptions

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
	"github.com/calebreyes/taskdeck-backend/pkg/errors"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

type fakeRepo struct {
	createFn              func(ctx context.Context, sub *models.WebhookSubscription) error
	updateFn              func(ctx context.Context, sub *models.WebhookSubscription) error
	deleteFn              func(ctx context.Context, id uuid.UUID) error
	findByIDFn            func(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error)
	listByProjectFn       func(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error)
	listActiveByProjectFn func(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error)

	withTxCalls int
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository {
	f.withTxCalls++
	return f
}

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

func (f *fakeRepo) Create(ctx context.Context, sub *models.WebhookSubscription) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, sub)
}

func (f *fakeRepo) Update(ctx context.Context, sub *models.WebhookSubscription) error {
	if f.updateFn == nil {
		return nil
	}
	return f.updateFn(ctx, sub)
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	if f.findByIDFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.findByIDFn(ctx, id)
}

func (f *fakeRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	if f.listByProjectFn == nil {
		return nil, nil
	}
	return f.listByProjectFn(ctx, projectID)
}

func (f *fakeRepo) ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	if f.listActiveByProjectFn == nil {
		return nil, nil
	}
	return f.listActiveByProjectFn(ctx, projectID)
}

type fakeCache struct {
	getFn        func(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, bool, error)
	setFn        func(ctx context.Context, projectID uuid.UUID, subs []models.WebhookSubscription) error
	invalidateFn func(ctx context.Context, projectID uuid.UUID) error

	invalidated []uuid.UUID
}

func (f *fakeCache) Get(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, bool, error) {
	if f.getFn == nil {
		return nil, false, nil
	}
	return f.getFn(ctx, projectID)
}

func (f *fakeCache) Set(ctx context.Context, projectID uuid.UUID, subs []models.WebhookSubscription) error {
	if f.setFn == nil {
		return nil
	}
	return f.setFn(ctx, projectID, subs)
}

func (f *fakeCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	f.invalidated = append(f.invalidated, projectID)
	if f.invalidateFn == nil {
		return nil
	}
	return f.invalidateFn(ctx, projectID)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "subscriptions-test", Output: io.Discard})
}

func newService(t *testing.T, repo Repository, cache Cache) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Cache: cache, Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newService(t, &fakeRepo{}, nil)
	projectID := uuid.New()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing project", CreateInput{URL: "https://example.com/hook", Events: []string{"task.created"}}},
		{"missing url", CreateInput{ProjectID: projectID, Events: []string{"task.created"}}},
		{"bad scheme", CreateInput{ProjectID: projectID, URL: "ftp://example.com", Events: []string{"task.created"}}},
		{"no events", CreateInput{ProjectID: projectID, URL: "https://example.com/hook"}},
		{"unknown event", CreateInput{ProjectID: projectID, URL: "https://example.com/hook", Events: []string{"task.exploded"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			typed := errors.As(err)
			if typed == nil || typed.Code() != errors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreatePersistsAndInvalidatesCache(t *testing.T) {
	projectID := uuid.New()
	var created *models.WebhookSubscription
	repo := &fakeRepo{
		createFn: func(ctx context.Context, sub *models.WebhookSubscription) error {
			created = sub
			return nil
		},
	}
	cache := &fakeCache{}
	svc := newService(t, repo, cache)

	sub, err := svc.Create(context.Background(), CreateInput{
		ProjectID: projectID,
		URL:       "https://example.com/hook",
		Events:    []string{"task.created", "comment.added"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created == nil || created.ID != sub.ID {
		t.Fatalf("subscription was not persisted")
	}
	if !sub.Active {
		t.Errorf("new subscriptions should default to active")
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != projectID {
		t.Errorf("expected cache invalidation for project %s, got %v", projectID, cache.invalidated)
	}
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	repo := &fakeRepo{
		createFn: func(ctx context.Context, sub *models.WebhookSubscription) error {
			return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "uq_webhook_subscriptions_project_url" (SQLSTATE 23505)`)
		},
	}
	svc := newService(t, repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		ProjectID: uuid.New(),
		URL:       "https://example.com/hook",
		Events:    []string{"task.created"},
	})
	typed := errors.As(err)
	if typed == nil || typed.Code() != errors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestUpdateMapsUniqueViolationToConflict(t *testing.T) {
	existing := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		URL:       "https://old.example.com/hook",
		Events:    []string{"task.created"},
		Active:    true,
	}
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, sub *models.WebhookSubscription) error {
			return fmt.Errorf(`ERROR: duplicate key value violates unique constraint "uq_webhook_subscriptions_project_url" (SQLSTATE 23505)`)
		},
	}
	svc := newService(t, repo, nil)

	taken := "https://taken.example.com/hook"
	_, err := svc.Update(context.Background(), existing.ID, UpdateInput{URL: &taken})
	typed := errors.As(err)
	if typed == nil || typed.Code() != errors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestWritesRunInsideTransaction(t *testing.T) {
	existing := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		URL:       "https://example.com/hook",
		Events:    []string{"task.created"},
		Active:    true,
	}
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
			return existing, nil
		},
	}
	txr := &fakeTxRunner{}
	svc, err := NewService(ServiceParams{Repo: repo, Cache: &fakeCache{}, DB: txr, Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	inactive := false
	if _, err := svc.Update(context.Background(), existing.ID, UpdateInput{Active: &inactive}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(context.Background(), existing.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if txr.calls != 2 {
		t.Errorf("expected update and delete to each open a transaction, got %d", txr.calls)
	}
	if repo.withTxCalls != 2 {
		t.Errorf("expected the repository to be rebound per transaction, got %d", repo.withTxCalls)
	}
}

func TestGetMapsMissingRecordToNotFound(t *testing.T) {
	svc := newService(t, &fakeRepo{}, nil)

	_, err := svc.Get(context.Background(), uuid.New())
	typed := errors.As(err)
	if typed == nil || typed.Code() != errors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	projectID := uuid.New()
	existing := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       "https://old.example.com/hook",
		Events:    []string{"task.created"},
		Active:    true,
	}
	var saved *models.WebhookSubscription
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, sub *models.WebhookSubscription) error {
			saved = sub
			return nil
		},
	}
	cache := &fakeCache{}
	svc := newService(t, repo, cache)

	inactive := false
	sub, err := svc.Update(context.Background(), existing.ID, UpdateInput{Active: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if sub.Active {
		t.Errorf("expected subscription to be deactivated")
	}
	if sub.URL != "https://old.example.com/hook" {
		t.Errorf("url should be unchanged, got %q", sub.URL)
	}
	if saved == nil {
		t.Fatalf("update was not persisted")
	}
	if len(cache.invalidated) != 1 {
		t.Errorf("expected one cache invalidation, got %d", len(cache.invalidated))
	}
}

func TestDeleteInvalidatesCache(t *testing.T) {
	projectID := uuid.New()
	existing := &models.WebhookSubscription{ID: uuid.New(), ProjectID: projectID}
	var deleted uuid.UUID
	repo := &fakeRepo{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
			return existing, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	cache := &fakeCache{}
	svc := newService(t, repo, cache)

	if err := svc.Delete(context.Background(), existing.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != existing.ID {
		t.Errorf("expected delete of %s, got %s", existing.ID, deleted)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != projectID {
		t.Errorf("expected cache invalidation for project %s", projectID)
	}
}
