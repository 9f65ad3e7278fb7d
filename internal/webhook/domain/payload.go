package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidPayload = errors.New("invalid_payload")

// Envelope is the provider's webhook body. The provider sends a loose
// nested document; everything optional is modeled explicitly here and
// validated once at the boundary instead of re-checked in every stage.
type Envelope struct {
	ID           string `json:"id"`
	CreationDate int64  `json:"creation_date"` // epoch millis
	Event        string `json:"event"`
	Version      string `json:"version"`
	Hottok       string `json:"hottok"`
	Data         Data   `json:"data"`
}

type Data struct {
	Product      Product       `json:"product"`
	Buyer        Buyer         `json:"buyer"`
	Purchase     Purchase      `json:"purchase"`
	Commissions  []Commission  `json:"commissions"`
	Affiliates   []Affiliate   `json:"affiliates"`
	Subscription *Subscription `json:"subscription"`
}

type Product struct {
	ID              int64  `json:"id"`
	UCode           string `json:"ucode"`
	Name            string `json:"name"`
	HasCoProduction bool   `json:"has_co_production"`
}

type Buyer struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	CheckoutPhone string `json:"checkout_phone"`
}

type Money struct {
	Value         float64 `json:"value"`
	CurrencyValue string  `json:"currency_value"`
}

// Decimal converts the float wire value exactly once at the boundary.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromFloat(m.Value)
}

type Offer struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type OrderBump struct {
	IsOrderBump               bool   `json:"is_order_bump"`
	ParentPurchaseTransaction string `json:"parent_purchase_transaction"`
}

type Origin struct {
	Sck string `json:"sck"`
}

type Purchase struct {
	Transaction               string     `json:"transaction"`
	OrderDate                 int64      `json:"order_date"`    // epoch millis
	ApprovedDate              int64      `json:"approved_date"` // epoch millis
	Status                    string     `json:"status"`
	Price                     Money      `json:"price"`
	FullPrice                 Money      `json:"full_price"`
	Offer                     Offer      `json:"offer"`
	OrderBump                 *OrderBump `json:"order_bump"`
	ParentPurchaseTransaction string     `json:"parent_purchase_transaction"`
	OrderRef                  string     `json:"order_ref"`
	PaymentType               string     `json:"payment_type"`
	Origin                    *Origin    `json:"origin"`
}

type Commission struct {
	Value         float64 `json:"value"`
	CurrencyValue string  `json:"currency_value"`
	Source        string  `json:"source"`
	Name          string  `json:"name"`
}

type Affiliate struct {
	AffiliateCode string `json:"affiliate_code"`
	Name          string `json:"name"`
}

type Subscription struct {
	Plan       Plan       `json:"plan"`
	Subscriber Subscriber `json:"subscriber"`
	Status     string     `json:"status"`
}

type Plan struct {
	Name string `json:"name"`
}

type Subscriber struct {
	Code string `json:"code"`
}

// Parse decodes and validates one webhook body.
func Parse(body []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := envelope.Validate(); err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (e *Envelope) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}
	return nil
}

// DeliveryID is the stable per-delivery identifier used as the raw
// event log key. The provider's id is preferred; very old payloads
// without one fall back to transaction+event.
func (e *Envelope) DeliveryID() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Data.Purchase.Transaction + "_" + e.Event
}

// OccurredAt is the provider's event timestamp, zero when absent.
func (e *Envelope) OccurredAt() time.Time {
	return fromMillis(e.CreationDate)
}

func (p Purchase) OrderedAt() time.Time {
	return fromMillis(p.OrderDate)
}

func (p Purchase) ApprovedAt() *time.Time {
	if p.ApprovedDate == 0 {
		return nil
	}
	at := fromMillis(p.ApprovedDate)
	return &at
}

// Sck returns the raw attribution token, nil when the purchase carries
// no origin block.
func (p Purchase) Sck() *string {
	if p.Origin == nil || p.Origin.Sck == "" {
		return nil
	}
	sck := p.Origin.Sck
	return &sck
}

// ProductID renders the numeric product id as the string key used by
// the order item identity.
func (p Product) ProductID() string {
	if p.ID == 0 {
		return p.UCode
	}
	return strconv.FormatInt(p.ID, 10)
}

// PlanName is the subscription plan, empty for one-off purchases.
func (d Data) PlanName() string {
	if d.Subscription == nil {
		return ""
	}
	return d.Subscription.Plan.Name
}

func fromMillis(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}
