package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
)

// Repository handles webhook subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.WebhookSubscription) error
	Update(ctx context.Context, sub *models.WebhookSubscription) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error)
	ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.WebhookSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, sub *models.WebhookSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.WebhookSubscription{}).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND active", projectID).
		Order("created_at ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
