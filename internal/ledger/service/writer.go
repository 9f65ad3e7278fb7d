package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/trackpilot/revsync/internal/currency"
	"github.com/trackpilot/revsync/internal/eventclass"
	"github.com/trackpilot/revsync/internal/ledger/domain"
	"github.com/trackpilot/revsync/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Commission source strings as sent by the provider.
const (
	SourceMarketplace = "MARKETPLACE"
	SourceProducer    = "PRODUCER"
	SourceAffiliate   = "AFFILIATE"
	SourceCoproducer  = "CO_PRODUCER"
)

type role struct {
	eventType domain.EventType
	actor     domain.Actor
}

var roleBySource = map[string]role{
	SourceMarketplace: {domain.EventTypePlatformFee, domain.ActorPlatform},
	SourceProducer:    {domain.EventTypeSale, domain.ActorProducer},
	SourceAffiliate:   {domain.EventTypeAffiliate, domain.ActorAffiliate},
	SourceCoproducer:  {domain.EventTypeCoproducer, domain.ActorCoproducer},
	"COPRODUCER":      {domain.EventTypeCoproducer, domain.ActorCoproducer},
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Normalizer *currency.Normalizer
	Metrics    *metrics.Metrics `optional:"true"`
}

// Service derives immutable per-actor ledger entries from commission
// breakdowns. All amounts are stored in the settlement currency.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	normalizer *currency.Normalizer
	metrics    *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		normalizer: p.Normalizer,
		metrics:    p.Metrics,
	}
}

// CommissionLine is one actor's share in the provider breakdown.
type CommissionLine struct {
	Source    string
	Value     decimal.Decimal
	Currency  string
	ActorName string
}

// WriteInput is everything the writer needs for one provider event.
type WriteInput struct {
	ProjectID   string
	Provider    string
	Transaction string
	OrderID     string
	Event       string

	Commissions     []CommissionLine
	GrossTotal      decimal.Decimal
	GrossCurrency   string
	HasCoProduction bool

	OccurredAt time.Time
	RawPayload datatypes.JSON

	// DryRun runs the full derivation, including the mirror lookup,
	// but suppresses inserts; the result reports what a real write
	// would have done.
	DryRun bool
}

// WriteResult reports what the writer did, for the response counters.
type WriteResult struct {
	Written     int
	Skipped     int
	Synthesized int
}

// Write derives and appends the ledger entries for one event.
//
// Sign convention: sale/credit events keep the producer amount positive
// and every other actor cost negative; debit events (refund,
// chargeback, cancellation) force every derived amount negative.
func (s *Service) Write(ctx context.Context, in WriteInput) (WriteResult, error) {
	class := eventclass.Classify(in.Event)
	debit := class.Polarity == eventclass.PolarityDebit

	if debit && len(in.Commissions) == 0 {
		// The provider omitted the breakdown on the reversal webhook.
		// Mirror the original sale so the refund fully reverses it.
		return s.mirrorExisting(ctx, in, debitEventType(class.Type))
	}

	entries, synthesized := s.deriveEntries(in, class)
	if len(entries) == 0 {
		return WriteResult{}, domain.ErrNoEntries
	}

	result := WriteResult{Synthesized: synthesized}
	if in.DryRun {
		existing, err := s.repo.ListByTransaction(ctx, s.db, in.ProjectID, in.Provider, in.Transaction)
		if err != nil {
			return result, err
		}
		previewAll(existing, entries, &result)
		return result, nil
	}
	if err := s.insertAll(ctx, entries, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) deriveEntries(in WriteInput, class eventclass.Classification) ([]*domain.LedgerEvent, int) {
	debit := class.Polarity == eventclass.PolarityDebit
	now := time.Now().UTC()

	var entries []*domain.LedgerEvent
	var platformFee, affiliateCost, producerNet decimal.Decimal
	sawCoproducer := false

	for _, line := range in.Commissions {
		r, ok := roleBySource[strings.ToUpper(strings.TrimSpace(line.Source))]
		if !ok {
			s.log.Warn("unknown commission source, skipped",
				zap.String("source", line.Source),
				zap.String("transaction", in.Transaction),
			)
			continue
		}

		conv := s.normalizer.Normalize(line.Value.Abs(), line.Currency)
		amount := conv.Amount

		eventType := r.eventType
		switch {
		case debit:
			eventType = debitEventType(class.Type)
			amount = amount.Neg()
		case r.actor == domain.ActorProducer:
			// producer keeps the positive side on a sale
		default:
			amount = amount.Neg()
		}

		switch r.actor {
		case domain.ActorPlatform:
			platformFee = platformFee.Add(conv.Amount)
		case domain.ActorAffiliate:
			affiliateCost = affiliateCost.Add(conv.Amount)
		case domain.ActorProducer:
			producerNet = producerNet.Add(conv.Amount)
		case domain.ActorCoproducer:
			sawCoproducer = true
		}

		entries = append(entries, s.newEvent(in, eventType, r.actor, line.ActorName, amount, conv.Currency, now))
	}

	synthesized := 0
	if !debit && in.HasCoProduction && !sawCoproducer {
		// Provider sent no co-producer line; derive the residual share.
		gross := s.normalizer.Normalize(in.GrossTotal, in.GrossCurrency).Amount
		implied := gross.Sub(platformFee).Sub(affiliateCost).Sub(producerNet)
		if implied.IsPositive() {
			entries = append(entries, s.newEvent(
				in,
				domain.EventTypeCoproducer,
				domain.ActorCoproducer,
				"",
				implied.Neg(),
				s.normalizer.Settlement(),
				now,
			))
			synthesized++
		}
	}

	return entries, synthesized
}

// mirrorExisting reverses the most recent non-debit entry per actor for
// this transaction with the same absolute amounts, all negative.
func (s *Service) mirrorExisting(ctx context.Context, in WriteInput, eventType domain.EventType) (WriteResult, error) {
	existing, err := s.repo.ListByTransaction(ctx, s.db, in.ProjectID, in.Provider, in.Transaction)
	if err != nil {
		return WriteResult{}, err
	}

	latestByActor := make(map[domain.Actor]*domain.LedgerEvent)
	for _, event := range existing {
		if event.EventType == domain.EventTypeRefund || event.EventType == domain.EventTypeChargeback {
			continue
		}
		latestByActor[event.Actor] = event
	}
	if len(latestByActor) == 0 {
		return WriteResult{}, domain.ErrNoEntries
	}

	now := time.Now().UTC()
	result := WriteResult{Synthesized: len(latestByActor)}
	var entries []*domain.LedgerEvent
	for actor, original := range latestByActor {
		entries = append(entries, s.newEvent(
			in,
			eventType,
			actor,
			original.ActorName,
			original.Amount.Abs().Neg(),
			original.Currency,
			now,
		))
	}

	if in.DryRun {
		previewAll(existing, entries, &result)
		return result, nil
	}
	if err := s.insertAll(ctx, entries, &result); err != nil {
		return result, err
	}
	return result, nil
}

// previewAll classifies derived entries against the rows already on
// disk, so a dry run predicts the same counts a real write would
// produce.
func previewAll(existing, entries []*domain.LedgerEvent, result *WriteResult) {
	seen := make(map[string]struct{}, len(existing))
	for _, event := range existing {
		seen[event.ProviderEventID] = struct{}{}
	}
	for _, entry := range entries {
		if _, ok := seen[entry.ProviderEventID]; ok {
			result.Skipped++
			continue
		}
		result.Written++
	}
}

func (s *Service) insertAll(ctx context.Context, entries []*domain.LedgerEvent, result *WriteResult) error {
	for _, entry := range entries {
		inserted, err := s.repo.Insert(ctx, s.db, entry)
		if err != nil {
			return err
		}
		if !inserted {
			result.Skipped++
			if s.metrics != nil {
				s.metrics.DuplicatesSkipped.WithLabelValues("ledger_events").Inc()
			}
			continue
		}
		result.Written++
		if s.metrics != nil {
			s.metrics.LedgerEntries.WithLabelValues(string(entry.EventType)).Inc()
		}
	}
	return nil
}

func (s *Service) newEvent(in WriteInput, eventType domain.EventType, actor domain.Actor, actorName string, amount decimal.Decimal, currencyCode string, now time.Time) *domain.LedgerEvent {
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &domain.LedgerEvent{
		ID:              s.genID.Generate(),
		ProjectID:       in.ProjectID,
		Provider:        in.Provider,
		OrderID:         in.OrderID,
		TransactionID:   in.Transaction,
		EventType:       eventType,
		Actor:           actor,
		ActorName:       actorName,
		Amount:          amount,
		Currency:        currencyCode,
		ProviderEventID: IdempotencyKey(in.Transaction, eventType, actor),
		OccurredAt:      occurredAt,
		RawPayload:      in.RawPayload,
		CreatedAt:       now,
	}
}

// IdempotencyKey builds the unique key guarding one (transaction,
// event type, actor) triple.
func IdempotencyKey(transaction string, eventType domain.EventType, actor domain.Actor) string {
	return fmt.Sprintf("%s_%s_%s", transaction, eventType, actor)
}

func debitEventType(canonical eventclass.CanonicalType) domain.EventType {
	if canonical == eventclass.TypeChargeback {
		return domain.EventTypeChargeback
	}
	return domain.EventTypeRefund
}

// ListByOrder exposes order-scoped entries for reconciliation views.
func (s *Service) ListByOrder(ctx context.Context, projectID, provider, orderID string) ([]*domain.LedgerEvent, error) {
	return s.repo.ListByOrder(ctx, s.db, projectID, provider, orderID)
}
