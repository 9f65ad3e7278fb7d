package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Processing status of a stored delivery.
const (
	StatusReceived  = "received"
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
	StatusFailed    = "failed"
)

// ProviderEvent is the append-only log of every inbound delivery, kept
// verbatim so the pipeline can be replayed during backfill. Rows are
// created once and only their status ever changes.
type ProviderEvent struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	ProjectID       string         `gorm:"type:text;not null;uniqueIndex:ux_provider_events_delivery,priority:1"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_provider_events_delivery,priority:2"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_provider_events_delivery,priority:3"`
	Event           string         `gorm:"type:text;not null"`
	TransactionID   string         `gorm:"type:text;index"`
	Status          string         `gorm:"type:text;not null"`
	ReceivedAt      time.Time      `gorm:"not null;index"`
	RawPayload      datatypes.JSON `gorm:"type:jsonb;not null"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

type Repository interface {
	// Insert appends one delivery; a duplicate provider_event_id reports
	// (false, nil) so redelivered webhooks are logged once.
	Insert(ctx context.Context, db *gorm.DB, event *ProviderEvent) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string) error
	// ListPage returns events received at or after since, oldest first.
	ListPage(ctx context.Context, db *gorm.DB, projectID string, since time.Time, limit, offset int) ([]*ProviderEvent, error)
}
