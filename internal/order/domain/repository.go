package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Contribution is one event's monetary addition to an order.
type Contribution struct {
	CustomerPaid decimal.Decimal
	GrossBase    decimal.Decimal
	ProducerNet  decimal.Decimal
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByProviderOrderID(ctx context.Context, db *gorm.DB, projectID, provider, providerOrderID string) (*Order, error)

	// AddContribution increments the monetary fields atomically at the
	// storage layer, so two concurrent line items cannot lose an update.
	AddContribution(ctx context.Context, db *gorm.DB, orderID int64, c Contribution, status string) error
	UpdateStatus(ctx context.Context, db *gorm.DB, orderID int64, status string, approvedAt, completedAt *time.Time) error

	InsertItem(ctx context.Context, db *gorm.DB, item *OrderItem) error
	FindItem(ctx context.Context, db *gorm.DB, orderID int64, providerProductID string) (*OrderItem, error)
	ListItems(ctx context.Context, db *gorm.DB, orderID int64) ([]*OrderItem, error)

	UpsertOrderMap(ctx context.Context, db *gorm.DB, m *ProviderOrderMap) error
	FindOrderMap(ctx context.Context, db *gorm.DB, projectID, provider, transactionID string) (*ProviderOrderMap, error)
}
