package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WebhookSubscription stores a registered third-party endpoint plus the event
// types it wants and an optional signing secret.
type WebhookSubscription struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;index"`
	URL       string         `gorm:"type:text;not null"`
	Events    pq.StringArray `gorm:"type:text[];not null"`
	Active    bool           `gorm:"not null;default:true"`
	Secret    *string        `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"type:timestamptz;default:now()"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;default:now()"`
}
