package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/trackpilot/revsync/internal/attribution"
	"github.com/trackpilot/revsync/internal/currency"
	"github.com/trackpilot/revsync/internal/eventclass"
	flatsaledomain "github.com/trackpilot/revsync/internal/flatsale/domain"
	ledgerdomain "github.com/trackpilot/revsync/internal/ledger/domain"
	ledgersvc "github.com/trackpilot/revsync/internal/ledger/service"
	"github.com/trackpilot/revsync/internal/metrics"
	orderdomain "github.com/trackpilot/revsync/internal/order/domain"
	ordersvc "github.com/trackpilot/revsync/internal/order/service"
	projectdomain "github.com/trackpilot/revsync/internal/project/domain"
	eventdomain "github.com/trackpilot/revsync/internal/providerevent/domain"
	"github.com/trackpilot/revsync/internal/providers/automation"
	"github.com/trackpilot/revsync/internal/providers/email"
	salescoresvc "github.com/trackpilot/revsync/internal/salescore/service"
	webhookdomain "github.com/trackpilot/revsync/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pipeline stages, in dispatch order.
const (
	StageSignature = "signature"
	StageEventLog  = "event_log"
	StageOrder     = "order"
	StageLedger    = "ledger"
	StageSalesCore = "sales_core"
	StageFlatSale  = "flat_sale"
	StageNotify    = "notify"
)

type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// StageResult records one stage's outcome. The full slice is inspected
// once at the end to build the response, so control flow stays linear.
type StageResult struct {
	Stage  string      `json:"stage"`
	Status StageStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Result is the webhook response body. Processing failures still answer
// HTTP 200 with Success=false so the provider does not retry-storm.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Event       string `json:"event,omitempty"`
	Status      string `json:"status,omitempty"`

	Duplicate     bool   `json:"duplicate,omitempty"`
	OrderOutcome  string `json:"order_outcome,omitempty"`
	LedgerWritten int    `json:"ledger_written"`
	LedgerSkipped int    `json:"ledger_skipped"`
	SnapshotState string `json:"snapshot_state,omitempty"`

	Stages []StageResult `json:"stages,omitempty"`
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Events     eventdomain.Repository
	Orders     *ordersvc.Service
	Ledger     *ledgersvc.Service
	SalesCore  *salescoresvc.Service
	FlatSales  flatsaledomain.Repository
	Normalizer *currency.Normalizer
	Email      email.Provider
	Automation automation.Provider
	Metrics    *metrics.Metrics `optional:"true"`
}

// Pipeline dispatches one inbound delivery through attribution,
// classification, order accumulation, ledger, canonical log and flat
// sale. Each non-critical stage runs inside its own failure boundary;
// the flat-sale upsert is always attempted.
type Pipeline struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	events     eventdomain.Repository
	orders     *ordersvc.Service
	ledger     *ledgersvc.Service
	salescore  *salescoresvc.Service
	flats      flatsaledomain.Repository
	normalizer *currency.Normalizer
	email      email.Provider
	automation automation.Provider
	metrics    *metrics.Metrics
}

func New(p Params) *Pipeline {
	return &Pipeline{
		db:         p.DB,
		log:        p.Log.Named("webhook.pipeline"),
		genID:      p.GenID,
		events:     p.Events,
		orders:     p.Orders,
		ledger:     p.Ledger,
		salescore:  p.SalesCore,
		flats:      p.FlatSales,
		normalizer: p.Normalizer,
		email:      p.Email,
		automation: p.Automation,
		metrics:    p.Metrics,
	}
}

// Process handles one delivery for an already-verified project. It
// never returns an error; everything is reported through the Result.
func (p *Pipeline) Process(ctx context.Context, project *projectdomain.Project, provider, hottok string, body []byte) Result {
	envelope, err := webhookdomain.Parse(body)
	if err != nil {
		p.log.Warn("rejected malformed payload", zap.String("project_id", project.ID), zap.Error(err))
		p.countFailure("parse")
		return Result{Success: false, Message: "invalid payload"}
	}

	if p.metrics != nil {
		p.metrics.EventsReceived.WithLabelValues(provider, envelope.Event).Inc()
	}

	if !p.verifySignature(project, hottok) {
		p.countFailure(StageSignature)
		return Result{
			Success: false,
			Message: "invalid signature",
			Event:   envelope.Event,
			Stages:  []StageResult{{Stage: StageSignature, Status: StageFailed, Detail: "hottok mismatch"}},
		}
	}

	run := &pipelineRun{
		pipeline: p,
		project:  project,
		provider: provider,
		envelope: envelope,
		class:    eventclass.Classify(envelope.Event),
		payload:  datatypes.JSON(body),
	}
	return run.execute(ctx)
}

// verifySignature enforces the hottok only when the project configured
// a secret; unsigned projects are accepted with a warning.
func (p *Pipeline) verifySignature(project *projectdomain.Project, hottok string) bool {
	if project.WebhookSecret == nil || *project.WebhookSecret == "" {
		p.log.Warn("project has no webhook secret, accepting unsigned delivery",
			zap.String("project_id", project.ID),
		)
		return true
	}
	return subtle.ConstantTimeCompare([]byte(hottok), []byte(*project.WebhookSecret)) == 1
}

func (p *Pipeline) countFailure(stage string) {
	if p.metrics != nil {
		p.metrics.StageFailures.WithLabelValues(stage).Inc()
	}
}

// pipelineRun is the per-delivery state threaded through the stages.
type pipelineRun struct {
	pipeline *Pipeline
	project  *projectdomain.Project
	provider string
	envelope *webhookdomain.Envelope
	class    eventclass.Classification
	payload  datatypes.JSON

	stages   []StageResult
	eventRow *eventdomain.ProviderEvent

	// materialized money, settlement currency
	customerPaid decimal.Decimal
	grossBase    decimal.Decimal
	producerNet  decimal.Decimal
	platformFee  decimal.Decimal
	affiliate    decimal.Decimal
	coproducer   decimal.Decimal

	attribution attribution.Attribution
	resolution  ordersvc.Resolution
	resolved    bool

	result Result
}

func (r *pipelineRun) execute(ctx context.Context) Result {
	p := r.pipeline
	purchase := r.envelope.Data.Purchase

	r.result = Result{
		Transaction: purchase.Transaction,
		Event:       r.envelope.Event,
		Status:      r.class.Status,
	}

	r.logEvent(ctx)

	if !r.class.Financial {
		if p.metrics != nil {
			p.metrics.EventsIgnored.WithLabelValues(r.provider, r.envelope.Event).Inc()
		}
		r.setEventStatus(ctx, eventdomain.StatusIgnored)
		r.result.Success = true
		r.result.Message = "event accepted, no financial side effects"
		r.result.Stages = r.stages
		return r.result
	}

	r.materialize()
	r.resolveOrder()
	r.accumulateOrder(ctx)
	r.writeLedger(ctx)
	r.writeSnapshot(ctx)
	r.upsertFlatSale(ctx)
	r.notify(ctx)

	r.result.Success = r.stageOK(StageFlatSale)
	if !r.result.Success {
		r.result.Message = "primary upsert failed"
	}
	if r.result.Success {
		r.setEventStatus(ctx, eventdomain.StatusProcessed)
	} else {
		r.setEventStatus(ctx, eventdomain.StatusFailed)
	}
	r.result.Stages = r.stages
	return r.result
}

// logEvent appends the raw delivery. A duplicate delivery id is normal
// under at-least-once delivery; processing continues because every
// downstream stage is idempotent.
func (r *pipelineRun) logEvent(ctx context.Context) {
	p := r.pipeline
	row := &eventdomain.ProviderEvent{
		ID:              p.genID.Generate(),
		ProjectID:       r.project.ID,
		Provider:        r.provider,
		ProviderEventID: r.envelope.DeliveryID(),
		Event:           r.envelope.Event,
		TransactionID:   r.envelope.Data.Purchase.Transaction,
		Status:          eventdomain.StatusReceived,
		ReceivedAt:      time.Now().UTC(),
		RawPayload:      r.payload,
	}

	inserted, err := p.events.Insert(ctx, p.db, row)
	if err != nil {
		p.log.Error("provider event log write failed", zap.Error(err))
		p.countFailure(StageEventLog)
		r.record(StageEventLog, StageFailed, err.Error())
		return
	}
	if !inserted {
		r.result.Duplicate = true
		if p.metrics != nil {
			p.metrics.DuplicatesSkipped.WithLabelValues("provider_events").Inc()
		}
		r.record(StageEventLog, StageOK, "duplicate delivery")
		return
	}
	r.eventRow = row
	r.record(StageEventLog, StageOK, "")
}

func (r *pipelineRun) setEventStatus(ctx context.Context, status string) {
	if r.eventRow == nil {
		return
	}
	p := r.pipeline
	if err := p.events.UpdateStatus(ctx, p.db, r.eventRow.ID, status); err != nil {
		p.log.Warn("provider event status update failed", zap.Error(err))
	}
}

// materialize runs the pure stages: attribution decode and currency
// normalization of every monetary field.
func (r *pipelineRun) materialize() {
	p := r.pipeline
	data := r.envelope.Data
	purchase := data.Purchase

	r.attribution = attribution.Parse(purchase.Sck())

	r.customerPaid = p.normalizer.Normalize(purchase.Price.Decimal(), purchase.Price.CurrencyValue).Amount
	gross := purchase.FullPrice
	if gross.Value == 0 {
		gross = purchase.Price
	}
	r.grossBase = p.normalizer.Normalize(gross.Decimal(), gross.CurrencyValue).Amount

	for _, commission := range data.Commissions {
		amount := p.normalizer.Normalize(decimal.NewFromFloat(commission.Value), commission.CurrencyValue).Amount
		switch commission.Source {
		case ledgersvc.SourceProducer:
			r.producerNet = r.producerNet.Add(amount)
		case ledgersvc.SourceMarketplace:
			r.platformFee = r.platformFee.Add(amount)
		case ledgersvc.SourceAffiliate:
			r.affiliate = r.affiliate.Add(amount)
		case ledgersvc.SourceCoproducer:
			r.coproducer = r.coproducer.Add(amount)
		}
	}
	if data.Product.HasCoProduction && r.coproducer.IsZero() {
		if implied := r.grossBase.Sub(r.platformFee).Sub(r.affiliate).Sub(r.producerNet); implied.IsPositive() {
			r.coproducer = implied
		}
	}
}

func (r *pipelineRun) resolveOrder() {
	p := r.pipeline
	purchase := r.envelope.Data.Purchase

	in := ordersvc.ResolveInput{
		Transaction: purchase.Transaction,
		OfferName:   optional(purchase.Offer.Name),
		OrderRef:    optional(purchase.OrderRef),
		OfferCode:   optional(purchase.Offer.Code),
		ProductCode: optional(r.envelope.Data.Product.ProductID()),
	}
	if purchase.OrderBump != nil {
		in.IsOrderBump = purchase.OrderBump.IsOrderBump
		in.BumpParent = optional(purchase.OrderBump.ParentPurchaseTransaction)
	}
	in.GenericParent = optional(purchase.ParentPurchaseTransaction)

	resolution, err := ordersvc.Resolve(in)
	if err != nil {
		// Unresolvable order id is non-fatal: skip the accumulator.
		p.log.Warn("order unresolvable, skipping accumulator",
			zap.String("transaction", purchase.Transaction),
			zap.String("event", r.envelope.Event),
		)
		r.record(StageOrder, StageSkipped, "no order identifier in payload")
		return
	}
	r.resolution = resolution
	r.resolved = true
}

func (r *pipelineRun) accumulateOrder(ctx context.Context) {
	if !r.resolved {
		return
	}
	p := r.pipeline
	data := r.envelope.Data
	purchase := data.Purchase

	outcome, err := p.orders.Accumulate(ctx, ordersvc.AccumulateInput{
		ProjectID:       r.project.ID,
		Provider:        r.provider,
		ProviderOrderID: r.resolution.ProviderOrderID,
		Transaction:     purchase.Transaction,
		BuyerEmail:      data.Buyer.Email,
		BuyerName:       data.Buyer.Name,
		BuyerPhone:      data.Buyer.CheckoutPhone,
		Status:          r.class.Status,
		Currency:        p.normalizer.Settlement(),
		Contribution: orderdomain.Contribution{
			CustomerPaid: r.customerPaid,
			GrossBase:    r.grossBase,
			ProducerNet:  r.producerNet,
		},
		OrderedAt:   purchase.OrderedAt(),
		ApprovedAt:  purchase.ApprovedAt(),
		Attribution: r.attribution,
		RawPayload:  r.payload,
		Item: ordersvc.ItemInput{
			ProviderProductID: data.Product.ProductID(),
			ProviderOfferID:   purchase.Offer.Code,
			ProductName:       data.Product.Name,
			OfferName:         purchase.Offer.Name,
			ItemType:          r.resolution.ItemType,
			BasePrice:         r.grossBase,
			Quantity:          1,
		},
	})
	if err != nil {
		if errors.Is(err, orderdomain.ErrUnresolvable) || errors.Is(err, orderdomain.ErrNotFound) {
			r.record(StageOrder, StageSkipped, err.Error())
			return
		}
		p.log.Error("order accumulation failed", zap.Error(err))
		p.countFailure(StageOrder)
		r.record(StageOrder, StageFailed, err.Error())
		return
	}
	r.result.OrderOutcome = string(outcome)
	r.record(StageOrder, StageOK, string(outcome))
}

func (r *pipelineRun) writeLedger(ctx context.Context) {
	p := r.pipeline
	data := r.envelope.Data
	purchase := data.Purchase

	lines := make([]ledgersvc.CommissionLine, 0, len(data.Commissions))
	for _, commission := range data.Commissions {
		lines = append(lines, ledgersvc.CommissionLine{
			Source:    commission.Source,
			Value:     decimal.NewFromFloat(commission.Value),
			Currency:  commission.CurrencyValue,
			ActorName: commission.Name,
		})
	}

	gross := purchase.FullPrice
	if gross.Value == 0 {
		gross = purchase.Price
	}

	result, err := p.ledger.Write(ctx, ledgersvc.WriteInput{
		ProjectID:       r.project.ID,
		Provider:        r.provider,
		Transaction:     purchase.Transaction,
		OrderID:         r.resolution.ProviderOrderID,
		Event:           r.envelope.Event,
		Commissions:     lines,
		GrossTotal:      gross.Decimal(),
		GrossCurrency:   gross.CurrencyValue,
		HasCoProduction: data.Product.HasCoProduction,
		OccurredAt:      r.envelope.OccurredAt(),
		RawPayload:      r.payload,
	})
	r.result.LedgerWritten = result.Written
	r.result.LedgerSkipped = result.Skipped
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrNoEntries) {
			r.record(StageLedger, StageSkipped, "no derivable entries")
			return
		}
		p.log.Error("ledger write failed", zap.Error(err))
		p.countFailure(StageLedger)
		r.record(StageLedger, StageFailed, err.Error())
		return
	}
	r.record(StageLedger, StageOK, "")
}

func (r *pipelineRun) writeSnapshot(ctx context.Context) {
	p := r.pipeline
	purchase := r.envelope.Data.Purchase

	outcome, err := p.salescore.Write(ctx, salescoresvc.WriteInput{
		ProjectID:      r.project.ID,
		Provider:       r.provider,
		Transaction:    purchase.Transaction,
		Event:          r.envelope.Event,
		EventType:      string(r.class.Type),
		GrossAmount:    r.grossBase,
		NetAmount:      r.producerNet,
		PlatformFee:    r.platformFee,
		AffiliateCost:  r.affiliate,
		CoproducerCost: r.coproducer,
		Currency:       p.normalizer.Settlement(),
		OccurredAt:     r.envelope.OccurredAt(),
		Attribution:    r.attribution,
	})
	if err != nil {
		p.log.Error("sales core snapshot failed", zap.Error(err))
		p.countFailure(StageSalesCore)
		r.record(StageSalesCore, StageFailed, err.Error())
		return
	}
	r.result.SnapshotState = string(outcome)
	r.record(StageSalesCore, StageOK, string(outcome))
}

// upsertFlatSale is the primary write. It always runs for financial
// events, even when every earlier stage failed.
func (r *pipelineRun) upsertFlatSale(ctx context.Context) {
	p := r.pipeline
	data := r.envelope.Data
	purchase := data.Purchase

	occurredAt := r.envelope.OccurredAt()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	record := &flatsaledomain.FlatSaleRecord{
		ID:            p.genID.Generate(),
		ProjectID:     r.project.ID,
		Provider:      r.provider,
		TransactionID: purchase.Transaction,
		Event:         r.envelope.Event,
		Status:        r.class.Status,
		BuyerEmail:    data.Buyer.Email,
		BuyerName:     data.Buyer.Name,
		BuyerPhone:    data.Buyer.CheckoutPhone,
		ProductID:     data.Product.ProductID(),
		ProductName:   data.Product.Name,
		OfferCode:     purchase.Offer.Code,
		OfferName:     purchase.Offer.Name,
		PlanName:      data.PlanName(),
		CustomerPaid:  r.customerPaid,
		GrossBase:     r.grossBase,
		ProducerNet:   r.producerNet,
		Currency:      p.normalizer.Settlement(),
		UtmSource:     r.attribution.Source,
		UtmMedium:     r.attribution.Medium,
		UtmCampaign:   r.attribution.Campaign,
		UtmTerm:       r.attribution.Term,
		UtmContent:    r.attribution.Content,
		SckRaw:        r.attribution.Raw,
		OccurredAt:    occurredAt,
		RawPayload:    r.payload,
	}

	if err := p.flats.Upsert(ctx, p.db, record); err != nil {
		p.log.Error("flat sale upsert failed", zap.Error(err))
		p.countFailure(StageFlatSale)
		r.record(StageFlatSale, StageFailed, err.Error())
		return
	}
	r.record(StageFlatSale, StageOK, "")
}

// notify fires the outbound collaborators on credit events. Failures
// are logged and never affect the response.
func (r *pipelineRun) notify(ctx context.Context) {
	if r.class.Polarity != eventclass.PolarityCredit {
		r.record(StageNotify, StageSkipped, "non-credit event")
		return
	}
	p := r.pipeline
	data := r.envelope.Data
	purchase := data.Purchase

	failed := false
	if err := p.email.SendPurchaseNotice(ctx, email.PurchaseNotice{
		Email:       data.Buyer.Email,
		Name:        data.Buyer.Name,
		PlanName:    data.PlanName(),
		Transaction: purchase.Transaction,
	}); err != nil {
		p.log.Warn("email notice failed", zap.Error(err))
		failed = true
	}
	if err := p.automation.Trigger(ctx, automation.TransactionTrigger{
		ProjectID:   r.project.ID,
		ContactID:   data.Buyer.Email,
		Transaction: purchase.Transaction,
		Event:       r.envelope.Event,
		Status:      r.class.Status,
	}); err != nil {
		p.log.Warn("automation trigger failed", zap.Error(err))
		failed = true
	}

	if failed {
		p.countFailure(StageNotify)
		r.record(StageNotify, StageFailed, "collaborator call failed")
		return
	}
	r.record(StageNotify, StageOK, "")
}

func (r *pipelineRun) record(stage string, status StageStatus, detail string) {
	r.stages = append(r.stages, StageResult{Stage: stage, Status: status, Detail: detail})
}

func (r *pipelineRun) stageOK(stage string) bool {
	for _, s := range r.stages {
		if s.Stage == stage {
			return s.Status == StageOK
		}
	}
	return false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
