package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SalesCoreEvent is one versioned snapshot of a provider event in the
// canonical store. At most one row per (project_id, provider_event_id)
// is active; a new version appears only when the materialized gross or
// net amount actually changed.
type SalesCoreEvent struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	ProjectID       string       `gorm:"type:text;not null;uniqueIndex:ux_sales_core_events_version,priority:1"`
	Provider        string       `gorm:"type:text;not null"`
	ProviderEventID string       `gorm:"type:text;not null;uniqueIndex:ux_sales_core_events_version,priority:2"`
	EventType       string       `gorm:"type:text;not null"`

	GrossAmount    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	PlatformFee    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	AffiliateCost  decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	CoproducerCost decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Currency       string          `gorm:"type:text;not null"`

	OccurredAt  time.Time      `gorm:"not null"`
	ReceivedAt  time.Time      `gorm:"not null"`
	EconomicDay string         `gorm:"type:text;not null;index"`
	Attribution datatypes.JSON `gorm:"type:jsonb"`

	Version  int  `gorm:"not null;uniqueIndex:ux_sales_core_events_version,priority:3"`
	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SalesCoreEvent) TableName() string { return "sales_core_events" }

type Repository interface {
	// FindActive returns the active version for the key, or nil.
	FindActive(ctx context.Context, db *gorm.DB, projectID, providerEventID string) (*SalesCoreEvent, error)
	Insert(ctx context.Context, db *gorm.DB, event *SalesCoreEvent) error
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListByEconomicDay(ctx context.Context, db *gorm.DB, projectID, economicDay string) ([]*SalesCoreEvent, error)
}
