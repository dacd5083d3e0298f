package subscriptions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS webhook_subscriptions (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL,
  url TEXT NOT NULL,
  events TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  secret TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_webhook_subscriptions_project_url
  ON webhook_subscriptions (project_id, url);`
	require.NoError(t, db.Exec(schema).Error)

	return db
}

func seedSubscription(t *testing.T, repo Repository, projectID uuid.UUID, url string, active bool, createdAt time.Time) *models.WebhookSubscription {
	t.Helper()
	sub := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       url,
		Events:    []string{"task.created"},
		Active:    active,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	return sub
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	projectID := uuid.New()

	created := seedSubscription(t, repo, projectID, "https://example.com/hook", true, time.Now())

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, projectID, found.ProjectID)
	assert.Equal(t, "https://example.com/hook", found.URL)
	assert.Equal(t, []string{"task.created"}, []string(found.Events))
	assert.True(t, found.Active)
}

func TestRepositoryFindMissingReturnsNotFound(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListByProjectOrdersByCreation(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	projectID := uuid.New()
	base := time.Now().Add(-time.Hour)

	second := seedSubscription(t, repo, projectID, "https://b.example.com", true, base.Add(time.Minute))
	first := seedSubscription(t, repo, projectID, "https://a.example.com", true, base)
	seedSubscription(t, repo, uuid.New(), "https://other.example.com", true, base)

	subs, err := repo.ListByProject(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, first.ID, subs[0].ID)
	assert.Equal(t, second.ID, subs[1].ID)
}

func TestRepositoryListActiveExcludesInactive(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	projectID := uuid.New()
	now := time.Now()

	active := seedSubscription(t, repo, projectID, "https://on.example.com", true, now)
	seedSubscription(t, repo, projectID, "https://off.example.com", false, now)

	subs, err := repo.ListActiveByProject(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, active.ID, subs[0].ID)
}

func TestRepositoryRejectsDuplicateProjectURL(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	projectID := uuid.New()

	seedSubscription(t, repo, projectID, "https://example.com/hook", true, time.Now())

	dup := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       "https://example.com/hook",
		Events:    []string{"task.created"},
		Active:    true,
	}
	assert.Error(t, repo.Create(context.Background(), dup))
}

func TestRepositoryWithTxCommitsAndRollsBack(t *testing.T) {
	dbh := setupSubscriptionsTestDB(t)
	repo := NewRepository(dbh)
	projectID := uuid.New()

	committed := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       "https://commit.example.com",
		Events:    []string{"task.created"},
		Active:    true,
	}
	err := dbh.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).Create(context.Background(), committed)
	})
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), committed.ID)
	require.NoError(t, err)
	assert.Equal(t, committed.ID, found.ID)

	aborted := &models.WebhookSubscription{
		ID:        uuid.New(),
		ProjectID: projectID,
		URL:       "https://abort.example.com",
		Events:    []string{"task.created"},
		Active:    true,
	}
	err = dbh.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).Create(context.Background(), aborted); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = repo.FindByID(context.Background(), aborted.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	projectID := uuid.New()

	sub := seedSubscription(t, repo, projectID, "https://example.com/hook", true, time.Now())

	sub.Active = false
	sub.Events = []string{"task.created", "comment.added"}
	require.NoError(t, repo.Update(context.Background(), sub))

	found, err := repo.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, found.Active)
	assert.Len(t, found.Events, 2)

	require.NoError(t, repo.Delete(context.Background(), sub.ID))
	_, err = repo.FindByID(context.Background(), sub.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
