package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trackpilot/revsync/internal/currency"
	"github.com/trackpilot/revsync/internal/eventclass"
	ledgersvc "github.com/trackpilot/revsync/internal/ledger/service"
	orderdomain "github.com/trackpilot/revsync/internal/order/domain"
	eventdomain "github.com/trackpilot/revsync/internal/providerevent/domain"
	salescoresvc "github.com/trackpilot/revsync/internal/salescore/service"
	webhookdomain "github.com/trackpilot/revsync/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDaysBack = 30
	defaultPageSize = 100
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Events     eventdomain.Repository
	Orders     orderdomain.Repository
	Ledger     *ledgersvc.Service
	SalesCore  *salescoresvc.Service
	Normalizer *currency.Normalizer
}

// Service replays the stored raw event log through the currency,
// ledger and canonical-snapshot logic. Because both paths share the
// same normalizer and writers, a replay reconciles to the same totals
// the webhook path produced.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	events     eventdomain.Repository
	orders     orderdomain.Repository
	ledger     *ledgersvc.Service
	salescore  *salescoresvc.Service
	normalizer *currency.Normalizer
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("backfill.service"),
		events:     p.Events,
		orders:     p.Orders,
		ledger:     p.Ledger,
		salescore:  p.SalesCore,
		normalizer: p.Normalizer,
	}
}

type Request struct {
	ProjectID string `json:"projectId"`
	DaysBack  int    `json:"daysBack"`
	PageSize  int    `json:"pageSize"`
	DryRun    bool   `json:"dryRun"`
}

// TransactionOutcome is the per-event replay result.
type TransactionOutcome struct {
	Transaction   string `json:"transaction"`
	Event         string `json:"event"`
	LedgerWritten int    `json:"ledger_written"`
	LedgerSkipped int    `json:"ledger_skipped"`
	SnapshotState string `json:"snapshot_state,omitempty"`
	Error         string `json:"error,omitempty"`
}

type Report struct {
	ProjectID string               `json:"project_id"`
	DryRun    bool                 `json:"dry_run"`
	Scanned   int                  `json:"scanned"`
	Replayed  int                  `json:"replayed"`
	Skipped   int                  `json:"skipped"`
	Failed    int                  `json:"failed"`
	Outcomes  []TransactionOutcome `json:"outcomes"`
}

// Run pages the raw event log and replays each financial event. With
// DryRun set every read and computation still happens but no write is
// issued.
func (s *Service) Run(ctx context.Context, req Request) (Report, error) {
	if req.DaysBack <= 0 {
		req.DaysBack = defaultDaysBack
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	since := time.Now().UTC().AddDate(0, 0, -req.DaysBack)

	report := Report{ProjectID: req.ProjectID, DryRun: req.DryRun}

	for offset := 0; ; offset += req.PageSize {
		page, err := s.events.ListPage(ctx, s.db, req.ProjectID, since, req.PageSize, offset)
		if err != nil {
			return report, err
		}
		if len(page) == 0 {
			break
		}

		for _, row := range page {
			report.Scanned++
			outcome, replayed := s.replay(ctx, row, req.DryRun)
			if outcome == nil {
				report.Skipped++
				continue
			}
			report.Outcomes = append(report.Outcomes, *outcome)
			if outcome.Error != "" {
				report.Failed++
			} else if replayed {
				report.Replayed++
			}
		}

		if len(page) < req.PageSize {
			break
		}
	}

	s.log.Info("backfill finished",
		zap.String("project_id", req.ProjectID),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("scanned", report.Scanned),
		zap.Int("replayed", report.Replayed),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// replay returns nil for events the pipeline would ignore.
func (s *Service) replay(ctx context.Context, row *eventdomain.ProviderEvent, dryRun bool) (*TransactionOutcome, bool) {
	envelope, err := webhookdomain.Parse(row.RawPayload)
	if err != nil {
		return &TransactionOutcome{
			Transaction: row.TransactionID,
			Event:       row.Event,
			Error:       "unparseable stored payload",
		}, false
	}

	class := eventclass.Classify(envelope.Event)
	if !class.Financial {
		return nil, false
	}

	purchase := envelope.Data.Purchase
	outcome := &TransactionOutcome{
		Transaction: purchase.Transaction,
		Event:       envelope.Event,
	}

	gross := purchase.FullPrice
	if gross.Value == 0 {
		gross = purchase.Price
	}
	grossBase := s.normalizer.Normalize(gross.Decimal(), gross.CurrencyValue).Amount

	var producerNet, platformFee, affiliateCost, coproducerCost decimal.Decimal
	lines := make([]ledgersvc.CommissionLine, 0, len(envelope.Data.Commissions))
	for _, commission := range envelope.Data.Commissions {
		amount := s.normalizer.Normalize(decimal.NewFromFloat(commission.Value), commission.CurrencyValue).Amount
		switch commission.Source {
		case ledgersvc.SourceProducer:
			producerNet = producerNet.Add(amount)
		case ledgersvc.SourceMarketplace:
			platformFee = platformFee.Add(amount)
		case ledgersvc.SourceAffiliate:
			affiliateCost = affiliateCost.Add(amount)
		case ledgersvc.SourceCoproducer:
			coproducerCost = coproducerCost.Add(amount)
		}
		lines = append(lines, ledgersvc.CommissionLine{
			Source:    commission.Source,
			Value:     decimal.NewFromFloat(commission.Value),
			Currency:  commission.CurrencyValue,
			ActorName: commission.Name,
		})
	}

	// Re-resolve the parent order the webhook path recorded for this
	// transaction, so replayed ledger rows group the same way.
	orderID := purchase.Transaction
	if mapping, mapErr := s.orders.FindOrderMap(ctx, s.db, row.ProjectID, row.Provider, purchase.Transaction); mapErr == nil && mapping != nil {
		orderID = mapping.ProviderOrderID
	}

	ledgerResult, err := s.ledger.Write(ctx, ledgersvc.WriteInput{
		ProjectID:       row.ProjectID,
		Provider:        row.Provider,
		Transaction:     purchase.Transaction,
		OrderID:         orderID,
		Event:           envelope.Event,
		Commissions:     lines,
		GrossTotal:      gross.Decimal(),
		GrossCurrency:   gross.CurrencyValue,
		HasCoProduction: envelope.Data.Product.HasCoProduction,
		OccurredAt:      envelope.OccurredAt(),
		RawPayload:      row.RawPayload,
		DryRun:          dryRun,
	})
	outcome.LedgerWritten = ledgerResult.Written
	outcome.LedgerSkipped = ledgerResult.Skipped
	if err != nil {
		outcome.Error = err.Error()
		return outcome, false
	}

	state, err := s.salescore.Write(ctx, salescoresvc.WriteInput{
		ProjectID:      row.ProjectID,
		Provider:       row.Provider,
		Transaction:    purchase.Transaction,
		Event:          envelope.Event,
		EventType:      string(class.Type),
		GrossAmount:    grossBase,
		NetAmount:      producerNet,
		PlatformFee:    platformFee,
		AffiliateCost:  affiliateCost,
		CoproducerCost: coproducerCost,
		Currency:       s.normalizer.Settlement(),
		OccurredAt:     envelope.OccurredAt(),
		DryRun:         dryRun,
	})
	if err != nil {
		outcome.Error = err.Error()
		return outcome, false
	}
	outcome.SnapshotState = string(state)
	return outcome, true
}
