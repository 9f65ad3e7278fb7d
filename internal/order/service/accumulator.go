package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/trackpilot/revsync/internal/attribution"
	"github.com/trackpilot/revsync/internal/locker"
	"github.com/trackpilot/revsync/internal/order/domain"
	pkgdb "github.com/trackpilot/revsync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const orderLockTTL = 10 * time.Second

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Locker *locker.Locker `optional:"true"`
}

// Service accumulates provider events into canonical orders. The
// check-then-accumulate sequence is guarded two ways: monetary updates
// are atomic SQL increments, and when redis is available a per-order
// lock serializes concurrent line items of the same order.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	lock  *locker.Locker
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		genID: p.GenID,
		repo:  p.Repo,
		lock:  p.Locker,
	}
}

// ItemInput identifies this event's line item within the order.
type ItemInput struct {
	ProviderProductID string
	ProviderOfferID   string
	ProductName       string
	OfferName         string
	ItemType          domain.ItemType
	BasePrice         decimal.Decimal
	Quantity          int
}

// AccumulateInput is one event's full contribution to an order.
type AccumulateInput struct {
	ProjectID       string
	Provider        string
	ProviderOrderID string
	Transaction     string

	BuyerEmail string
	BuyerName  string
	BuyerPhone string

	Status   string
	Currency string

	Contribution domain.Contribution

	OrderedAt   time.Time
	ApprovedAt  *time.Time
	CompletedAt *time.Time

	Attribution attribution.Attribution
	RawPayload  datatypes.JSON

	Item ItemInput
}

// AccumulateOutcome reports which branch ran, for diagnostics.
type AccumulateOutcome string

const (
	OutcomeInserted    AccumulateOutcome = "inserted"
	OutcomeAccumulated AccumulateOutcome = "accumulated"
	OutcomeAlreadySeen AccumulateOutcome = "already_seen"
)

// Accumulate upserts the canonical order for one event. First sight
// inserts; a new line item adds to the monetary totals; a retried
// delivery of an already-counted item touches only status/timestamps.
func (s *Service) Accumulate(ctx context.Context, in AccumulateInput) (AccumulateOutcome, error) {
	if s.lock != nil {
		key := locker.OrderKey(in.ProjectID, in.Provider, in.ProviderOrderID)
		token, err := s.lock.Lock(ctx, key, orderLockTTL)
		if err != nil {
			s.log.Warn("order lock unavailable, proceeding without it",
				zap.String("order", in.ProviderOrderID),
				zap.Error(err),
			)
		} else {
			defer func() {
				_ = s.lock.Release(ctx, key, token)
			}()
		}
	}

	existing, err := s.repo.FindByProviderOrderID(ctx, s.db, in.ProjectID, in.Provider, in.ProviderOrderID)
	if err != nil {
		return "", err
	}

	if existing == nil {
		outcome, err := s.insertNew(ctx, in)
		if err == nil || !pkgdb.IsDuplicateKeyErr(err) {
			return outcome, err
		}
		// Lost the insert race to a concurrent delivery; fall through
		// to the accumulate path against the winner's row.
		existing, err = s.repo.FindByProviderOrderID(ctx, s.db, in.ProjectID, in.Provider, in.ProviderOrderID)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return "", domain.ErrNotFound
		}
	}

	return s.accumulateExisting(ctx, existing, in)
}

func (s *Service) insertNew(ctx context.Context, in AccumulateInput) (AccumulateOutcome, error) {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:              s.genID.Generate(),
		ProjectID:       in.ProjectID,
		Provider:        in.Provider,
		ProviderOrderID: in.ProviderOrderID,
		BuyerEmail:      in.BuyerEmail,
		BuyerName:       in.BuyerName,
		BuyerPhone:      in.BuyerPhone,
		Status:          in.Status,
		Currency:        in.Currency,
		CustomerPaid:    in.Contribution.CustomerPaid,
		GrossBase:       in.Contribution.GrossBase,
		ProducerNet:     in.Contribution.ProducerNet,
		OrderedAt:       in.OrderedAt,
		ApprovedAt:      in.ApprovedAt,
		CompletedAt:     in.CompletedAt,
		UtmSource:       in.Attribution.Source,
		UtmMedium:       in.Attribution.Medium,
		UtmCampaign:     in.Attribution.Campaign,
		UtmTerm:         in.Attribution.Term,
		UtmContent:      in.Attribution.Content,
		CampaignID:      in.Attribution.CampaignID,
		AdsetID:         in.Attribution.AdsetID,
		AdID:            in.Attribution.AdID,
		SckRaw:          in.Attribution.Raw,
		RawPayload:      in.RawPayload,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return "", err
	}

	if err := s.insertItemAndMap(ctx, order.ID.Int64(), in); err != nil {
		return "", err
	}

	s.log.Info("order created",
		zap.String("project_id", in.ProjectID),
		zap.String("provider_order_id", in.ProviderOrderID),
		zap.String("item_type", string(in.Item.ItemType)),
	)
	return OutcomeInserted, nil
}

func (s *Service) accumulateExisting(ctx context.Context, order *domain.Order, in AccumulateInput) (AccumulateOutcome, error) {
	item, err := s.repo.FindItem(ctx, s.db, order.ID.Int64(), in.Item.ProviderProductID)
	if err != nil {
		return "", err
	}

	if item != nil {
		// Retried delivery of an already-counted item: never touch the
		// monetary fields, only status and timestamps.
		if err := s.repo.UpdateStatus(ctx, s.db, order.ID.Int64(), in.Status, in.ApprovedAt, in.CompletedAt); err != nil {
			return "", err
		}
		return OutcomeAlreadySeen, nil
	}

	// Genuinely new line item (a bump or upsell arriving before or
	// after the main product): add, never replace.
	if err := s.repo.AddContribution(ctx, s.db, order.ID.Int64(), in.Contribution, in.Status); err != nil {
		return "", err
	}
	if err := s.insertItemAndMap(ctx, order.ID.Int64(), in); err != nil {
		return "", err
	}

	s.log.Info("order accumulated",
		zap.String("provider_order_id", in.ProviderOrderID),
		zap.String("product_id", in.Item.ProviderProductID),
		zap.String("item_type", string(in.Item.ItemType)),
	)
	return OutcomeAccumulated, nil
}

func (s *Service) insertItemAndMap(ctx context.Context, orderID int64, in AccumulateInput) error {
	quantity := in.Item.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	item := &domain.OrderItem{
		ID:                s.genID.Generate(),
		OrderID:           snowflake.ID(orderID),
		ProviderProductID: in.Item.ProviderProductID,
		ProviderOfferID:   in.Item.ProviderOfferID,
		ProductName:       in.Item.ProductName,
		OfferName:         in.Item.OfferName,
		ItemType:          in.Item.ItemType,
		BasePrice:         in.Item.BasePrice,
		Quantity:          quantity,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.InsertItem(ctx, s.db, item); err != nil {
		return err
	}

	if in.Transaction == "" {
		return nil
	}
	return s.repo.UpsertOrderMap(ctx, s.db, &domain.ProviderOrderMap{
		ID:                    s.genID.Generate(),
		ProjectID:             in.ProjectID,
		Provider:              in.Provider,
		ProviderTransactionID: in.Transaction,
		ProviderOrderID:       in.ProviderOrderID,
		CreatedAt:             time.Now().UTC(),
	})
}

// FindOrder exposes lookups for the response body and the backfill path.
func (s *Service) FindOrder(ctx context.Context, projectID, provider, providerOrderID string) (*domain.Order, error) {
	return s.repo.FindByProviderOrderID(ctx, s.db, projectID, provider, providerOrderID)
}
