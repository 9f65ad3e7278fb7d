package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/trackpilot/revsync/internal/attribution"
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/metrics"
	"github.com/trackpilot/revsync/internal/salescore/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Config  config.Config
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

// Service writes versioned snapshots of provider events into the
// canonical store. Retried deliveries with unchanged amounts are
// skipped; a real change deactivates the prior version and appends the
// next one.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	metrics     *metrics.Metrics
	offsetHours int
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("salescore.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		metrics:     p.Metrics,
		offsetHours: p.Config.EconomicDayOffsetHours,
	}
}

// NewWithOffset builds a service with an explicit economic-day offset,
// for tests and tools.
func NewWithOffset(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, repo domain.Repository, offsetHours int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:          db,
		log:         log,
		genID:       genID,
		repo:        repo,
		offsetHours: offsetHours,
	}
}

// WriteInput carries the materialized monetary view of one event.
type WriteInput struct {
	ProjectID   string
	Provider    string
	Transaction string
	Event       string
	EventType   string

	GrossAmount    decimal.Decimal
	NetAmount      decimal.Decimal
	PlatformFee    decimal.Decimal
	AffiliateCost  decimal.Decimal
	CoproducerCost decimal.Decimal
	Currency       string

	OccurredAt  time.Time
	Attribution attribution.Attribution

	// DryRun reads the active version and reports the outcome a real
	// write would produce, without touching the table.
	DryRun bool
}

type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeVersioned Outcome = "versioned"
)

// Write upserts the canonical snapshot for one event.
func (s *Service) Write(ctx context.Context, in WriteInput) (Outcome, error) {
	key := ProviderEventID(in.Provider, in.Transaction, in.Event)

	active, err := s.repo.FindActive(ctx, s.db, in.ProjectID, key)
	if err != nil {
		return "", err
	}

	if active != nil && active.GrossAmount.Equal(in.GrossAmount) && active.NetAmount.Equal(in.NetAmount) {
		if !in.DryRun && s.metrics != nil {
			s.metrics.DuplicatesSkipped.WithLabelValues("sales_core_events").Inc()
		}
		return OutcomeUnchanged, nil
	}

	if in.DryRun {
		if active == nil {
			return OutcomeInserted, nil
		}
		return OutcomeVersioned, nil
	}

	version := 1
	if active != nil {
		version = active.Version + 1
	}

	event, err := s.buildEvent(in, key, version)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if active != nil {
			if err := s.repo.Deactivate(ctx, tx, active.ID); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, event)
	})
	if err != nil {
		return "", err
	}

	if active == nil {
		return OutcomeInserted, nil
	}
	s.log.Info("sales core event reversioned",
		zap.String("provider_event_id", key),
		zap.Int("version", version),
	)
	return OutcomeVersioned, nil
}

func (s *Service) buildEvent(in WriteInput, key string, version int) (*domain.SalesCoreEvent, error) {
	now := time.Now().UTC()
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	attr, err := json.Marshal(in.Attribution)
	if err != nil {
		return nil, fmt.Errorf("marshal attribution: %w", err)
	}

	return &domain.SalesCoreEvent{
		ID:              s.genID.Generate(),
		ProjectID:       in.ProjectID,
		Provider:        in.Provider,
		ProviderEventID: key,
		EventType:       in.EventType,
		GrossAmount:     in.GrossAmount,
		NetAmount:       in.NetAmount,
		PlatformFee:     in.PlatformFee,
		AffiliateCost:   in.AffiliateCost,
		CoproducerCost:  in.CoproducerCost,
		Currency:        in.Currency,
		OccurredAt:      occurredAt,
		ReceivedAt:      now,
		EconomicDay:     EconomicDay(occurredAt, s.offsetHours),
		Attribution:     datatypes.JSON(attr),
		Version:         version,
		IsActive:        true,
		CreatedAt:       now,
	}, nil
}

// ProviderEventID builds the stable canonical-store key for one event.
func ProviderEventID(provider, transaction, event string) string {
	return fmt.Sprintf("%s_%s_%s", provider, transaction, event)
}

// EconomicDay shifts occurredAt by the configured offset and takes the
// calendar date. Computed once at write time, never at query time.
func EconomicDay(occurredAt time.Time, offsetHours int) string {
	return occurredAt.UTC().Add(time.Duration(offsetHours) * time.Hour).Format("2006-01-02")
}
