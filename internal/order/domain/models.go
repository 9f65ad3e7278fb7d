package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	ErrUnresolvable = errors.New("order_unresolvable")
	ErrNotFound     = errors.New("order_not_found")
)

// ItemType classifies a line item within an order.
type ItemType string

const (
	ItemTypeMain     ItemType = "main"
	ItemTypeBump     ItemType = "bump"
	ItemTypeUpsell   ItemType = "upsell"
	ItemTypeDownsell ItemType = "downsell"
)

// Order is the canonical order a provider event resolves to. The three
// monetary fields are accumulated sums over all line items seen so far;
// they are never overwritten with a single event's value once a second
// item exists.
type Order struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	ProjectID       string       `gorm:"type:text;not null;index;uniqueIndex:ux_orders_provider_order,priority:1"`
	Provider        string       `gorm:"type:text;not null;uniqueIndex:ux_orders_provider_order,priority:2"`
	ProviderOrderID string       `gorm:"type:text;not null;uniqueIndex:ux_orders_provider_order,priority:3"`

	BuyerEmail string `gorm:"type:text"`
	BuyerName  string `gorm:"type:text"`
	BuyerPhone string `gorm:"type:text"`

	Status   string `gorm:"type:text;not null"`
	Currency string `gorm:"type:text;not null"`

	CustomerPaid decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	GrossBase    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	ProducerNet  decimal.Decimal `gorm:"type:numeric(18,6);not null"`

	OrderedAt   time.Time  `gorm:"not null"`
	ApprovedAt  *time.Time `gorm:""`
	CompletedAt *time.Time `gorm:""`

	UtmSource   *string `gorm:"type:text"`
	UtmMedium   *string `gorm:"type:text"`
	UtmCampaign *string `gorm:"type:text"`
	UtmTerm     *string `gorm:"type:text"`
	UtmContent  *string `gorm:"type:text"`
	CampaignID  *string `gorm:"type:text"`
	AdsetID     *string `gorm:"type:text"`
	AdID        *string `gorm:"type:text"`
	SckRaw      *string `gorm:"type:text"`

	RawPayload datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one distinct product inside an order. Identity is
// (order, provider product id); rows are immutable after creation.
type OrderItem struct {
	ID                snowflake.ID    `gorm:"primaryKey"`
	OrderID           snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_order_items_product,priority:1"`
	ProviderProductID string          `gorm:"type:text;not null;uniqueIndex:ux_order_items_product,priority:2"`
	ProviderOfferID   string          `gorm:"type:text"`
	ProductName       string          `gorm:"type:text"`
	OfferName         string          `gorm:"type:text"`
	ItemType          ItemType        `gorm:"type:text;not null"`
	BasePrice         decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Quantity          int             `gorm:"not null;default:1"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderItem) TableName() string { return "order_items" }

// ProviderOrderMap translates a line-item transaction id back to its
// (possibly different) parent order id.
type ProviderOrderMap struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	ProjectID             string       `gorm:"type:text;not null;uniqueIndex:ux_provider_order_map,priority:1"`
	Provider              string       `gorm:"type:text;not null;uniqueIndex:ux_provider_order_map,priority:2"`
	ProviderTransactionID string       `gorm:"type:text;not null;uniqueIndex:ux_provider_order_map,priority:3"`
	ProviderOrderID       string       `gorm:"type:text;not null"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProviderOrderMap) TableName() string { return "provider_order_map" }
