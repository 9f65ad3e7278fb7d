package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNoEntries = errors.New("ledger_no_entries")

// EventType categorizes a ledger entry.
type EventType string

const (
	EventTypeSale        EventType = "sale"
	EventTypePlatformFee EventType = "platform_fee"
	EventTypeAffiliate   EventType = "affiliate"
	EventTypeCoproducer  EventType = "coproducer"
	EventTypeRefund      EventType = "refund"
	EventTypeChargeback  EventType = "chargeback"
	EventTypeCredit      EventType = "credit"
)

// Actor is whose balance an entry affects.
type Actor string

const (
	ActorProducer   Actor = "producer"
	ActorPlatform   Actor = "platform"
	ActorAffiliate  Actor = "affiliate"
	ActorCoproducer Actor = "coproducer"
)

// LedgerEvent is an immutable, append-only record of money movement.
// Negative amounts are money leaving the producer's balance. The
// provider_event_id ({transaction}_{event_type}_{actor}) is the
// idempotency key: at most one row exists per triple, and a duplicate
// insert under retry is a successful no-op.
type LedgerEvent struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	ProjectID       string          `gorm:"type:text;not null;index"`
	Provider        string          `gorm:"type:text;not null"`
	OrderID         string          `gorm:"type:text;not null;index"`
	TransactionID   string          `gorm:"type:text;not null;index"`
	EventType       EventType       `gorm:"type:text;not null"`
	Actor           Actor           `gorm:"type:text;not null"`
	ActorName       string          `gorm:"type:text"`
	Amount          decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Currency        string          `gorm:"type:text;not null"`
	ProviderEventID string          `gorm:"type:text;not null;uniqueIndex:ux_ledger_events_provider_event"`
	OccurredAt      time.Time       `gorm:"not null"`
	RawPayload      datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LedgerEvent) TableName() string { return "ledger_events" }

type Repository interface {
	// Insert writes one entry; a duplicate idempotency key reports
	// (false, nil) so retried deliveries degrade to a no-op.
	Insert(ctx context.Context, db *gorm.DB, event *LedgerEvent) (bool, error)
	ListByTransaction(ctx context.Context, db *gorm.DB, projectID, provider, transactionID string) ([]*LedgerEvent, error)
	ListByOrder(ctx context.Context, db *gorm.DB, projectID, provider, orderID string) ([]*LedgerEvent, error)
}
