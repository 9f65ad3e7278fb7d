package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("project_not_found")

// Project is a tenant receiving webhooks. WebhookSecret, when set,
// turns on signature verification for inbound deliveries.
type Project struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	Name          string  `gorm:"type:text;not null"`
	WebhookSecret *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Project) TableName() string { return "projects" }

type Repository interface {
	// FindByID returns ErrNotFound when no project exists for id.
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Project, error)
	Insert(ctx context.Context, db *gorm.DB, project *Project) error
}
