package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FlatSaleRecord is the denormalized "latest known state" row for one
// transaction, kept for legacy and reporting consumers. Unlike the
// order totals it is fully overwritten on every event, never
// accumulated.
type FlatSaleRecord struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ProjectID     string       `gorm:"type:text;not null;uniqueIndex:ux_flat_sales_transaction,priority:1"`
	Provider      string       `gorm:"type:text;not null"`
	TransactionID string       `gorm:"type:text;not null;uniqueIndex:ux_flat_sales_transaction,priority:2"`

	Event  string `gorm:"type:text;not null"`
	Status string `gorm:"type:text;not null"`

	BuyerEmail string `gorm:"type:text"`
	BuyerName  string `gorm:"type:text"`
	BuyerPhone string `gorm:"type:text"`

	ProductID   string `gorm:"type:text"`
	ProductName string `gorm:"type:text"`
	OfferCode   string `gorm:"type:text"`
	OfferName   string `gorm:"type:text"`
	PlanName    string `gorm:"type:text"`

	CustomerPaid decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	GrossBase    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	ProducerNet  decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Currency     string          `gorm:"type:text;not null"`

	UtmSource   *string `gorm:"type:text"`
	UtmMedium   *string `gorm:"type:text"`
	UtmCampaign *string `gorm:"type:text"`
	UtmTerm     *string `gorm:"type:text"`
	UtmContent  *string `gorm:"type:text"`
	SckRaw      *string `gorm:"type:text"`

	OccurredAt time.Time      `gorm:"not null"`
	RawPayload datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FlatSaleRecord) TableName() string { return "flat_sales" }

type Repository interface {
	// Upsert overwrites the row for (project_id, transaction_id); a
	// concurrent first insert degrades to the update path.
	Upsert(ctx context.Context, db *gorm.DB, record *FlatSaleRecord) error
	FindByTransaction(ctx context.Context, db *gorm.DB, projectID, transactionID string) (*FlatSaleRecord, error)
}
