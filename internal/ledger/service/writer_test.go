package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/currency"
	"github.com/trackpilot/revsync/internal/ledger/domain"
	"github.com/trackpilot/revsync/internal/ledger/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.LedgerEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	normalizer := currency.NewStatic(config.RatesConfig{
		Settlement: "BRL",
		Rates:      map[string]float64{"USD": 5},
	}, zap.NewNop())

	svc := &Service{
		db:         gdb,
		log:        zap.NewNop(),
		genID:      node,
		repo:       repository.Provide(),
		normalizer: normalizer,
	}
	return svc, gdb
}

func saleInput(transaction string) WriteInput {
	return WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: transaction,
		OrderID:     "order-1",
		Event:       "PURCHASE_APPROVED",
		Commissions: []CommissionLine{
			{Source: SourceMarketplace, Value: decimal.NewFromInt(10), Currency: "BRL"},
			{Source: SourceProducer, Value: decimal.NewFromInt(90), Currency: "BRL"},
		},
		GrossTotal:    decimal.NewFromInt(100),
		GrossCurrency: "BRL",
	}
}

func entriesByActor(t *testing.T, gdb *gorm.DB, transaction string) map[domain.Actor]*domain.LedgerEvent {
	t.Helper()
	var events []*domain.LedgerEvent
	require.NoError(t, gdb.Where("transaction_id = ?", transaction).Find(&events).Error)
	byActor := make(map[domain.Actor]*domain.LedgerEvent, len(events))
	for _, event := range events {
		byActor[event.Actor] = event
	}
	return byActor
}

func TestWriteSaleBreakdown(t *testing.T) {
	svc, gdb := newTestService(t)

	result, err := svc.Write(context.Background(), saleInput("HP111"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 0, result.Skipped)

	byActor := entriesByActor(t, gdb, "HP111")
	require.Len(t, byActor, 2)

	producer := byActor[domain.ActorProducer]
	assert.Equal(t, domain.EventTypeSale, producer.EventType)
	assert.True(t, producer.Amount.Equal(decimal.NewFromInt(90)), producer.Amount.String())
	assert.Equal(t, "HP111_sale_producer", producer.ProviderEventID)

	platform := byActor[domain.ActorPlatform]
	assert.Equal(t, domain.EventTypePlatformFee, platform.EventType)
	assert.True(t, platform.Amount.Equal(decimal.NewFromInt(-10)), platform.Amount.String())
}

func TestWriteIsIdempotent(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, saleInput("HP222"))
	require.NoError(t, err)

	result, err := svc.Write(ctx, saleInput("HP222"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Written)
	assert.Equal(t, 2, result.Skipped)

	var count int64
	require.NoError(t, gdb.Model(&domain.LedgerEvent{}).Where("transaction_id = ?", "HP222").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestWriteRefundMirrorsSale(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, saleInput("HP333"))
	require.NoError(t, err)

	refund := WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP333",
		OrderID:     "order-1",
		Event:       "PURCHASE_REFUNDED",
	}
	result, err := svc.Write(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)

	var events []*domain.LedgerEvent
	require.NoError(t, gdb.
		Where("transaction_id = ? AND event_type = ?", "HP333", domain.EventTypeRefund).
		Find(&events).Error)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.True(t, event.Amount.IsNegative(), "refund entry for %s must be negative", event.Actor)
	}

	var producerRefund domain.LedgerEvent
	require.NoError(t, gdb.
		Where("provider_event_id = ?", "HP333_refund_producer").
		First(&producerRefund).Error)
	assert.True(t, producerRefund.Amount.Equal(decimal.NewFromInt(-90)), producerRefund.Amount.String())
}

func TestWriteRefundWithoutSaleFails(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Write(context.Background(), WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP000",
		Event:       "PURCHASE_REFUNDED",
	})
	assert.ErrorIs(t, err, domain.ErrNoEntries)
}

func TestWriteSynthesizesCoproducerResidual(t *testing.T) {
	svc, gdb := newTestService(t)

	in := WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP444",
		OrderID:     "order-2",
		Event:       "PURCHASE_APPROVED",
		Commissions: []CommissionLine{
			{Source: SourceMarketplace, Value: decimal.NewFromInt(10), Currency: "BRL"},
			{Source: SourceAffiliate, Value: decimal.NewFromInt(5), Currency: "BRL"},
			{Source: SourceProducer, Value: decimal.NewFromInt(60), Currency: "BRL"},
		},
		GrossTotal:      decimal.NewFromInt(100),
		GrossCurrency:   "BRL",
		HasCoProduction: true,
	}
	result, err := svc.Write(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Written)
	assert.Equal(t, 1, result.Synthesized)

	byActor := entriesByActor(t, gdb, "HP444")
	coproducer := byActor[domain.ActorCoproducer]
	require.NotNil(t, coproducer)
	assert.Equal(t, domain.EventTypeCoproducer, coproducer.EventType)
	assert.True(t, coproducer.Amount.Equal(decimal.NewFromInt(-25)), coproducer.Amount.String())
}

func TestWriteNoResidualNoSynthesis(t *testing.T) {
	svc, gdb := newTestService(t)

	in := saleInput("HP555")
	in.HasCoProduction = true // breakdown already sums to gross
	result, err := svc.Write(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synthesized)

	byActor := entriesByActor(t, gdb, "HP555")
	assert.Nil(t, byActor[domain.ActorCoproducer])
}

func TestWriteNormalizesCurrency(t *testing.T) {
	svc, gdb := newTestService(t)

	in := WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP666",
		OrderID:     "order-3",
		Event:       "PURCHASE_APPROVED",
		Commissions: []CommissionLine{
			{Source: SourceProducer, Value: decimal.NewFromInt(20), Currency: "USD"},
		},
		GrossTotal:    decimal.NewFromInt(25),
		GrossCurrency: "USD",
	}
	_, err := svc.Write(context.Background(), in)
	require.NoError(t, err)

	byActor := entriesByActor(t, gdb, "HP666")
	producer := byActor[domain.ActorProducer]
	require.NotNil(t, producer)
	assert.True(t, producer.Amount.Equal(decimal.NewFromInt(100)), producer.Amount.String())
	assert.Equal(t, "BRL", producer.Currency)
}

func TestWriteDryRunPredictsWithoutWriting(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	dry := saleInput("HP888")
	dry.DryRun = true
	result, err := svc.Write(ctx, dry)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 0, result.Skipped)

	var count int64
	require.NoError(t, gdb.Model(&domain.LedgerEvent{}).Where("transaction_id = ?", "HP888").Count(&count).Error)
	assert.EqualValues(t, 0, count)

	_, err = svc.Write(ctx, saleInput("HP888"))
	require.NoError(t, err)

	result, err = svc.Write(ctx, dry)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Written)
	assert.Equal(t, 2, result.Skipped)
}

func TestWriteDryRunRunsMirrorLookup(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, saleInput("HP999"))
	require.NoError(t, err)

	refund := WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP999",
		OrderID:     "order-1",
		Event:       "PURCHASE_REFUNDED",
		DryRun:      true,
	}
	result, err := svc.Write(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 2, result.Synthesized)

	var count int64
	require.NoError(t, gdb.Model(&domain.LedgerEvent{}).
		Where("transaction_id = ? AND event_type = ?", "HP999", domain.EventTypeRefund).
		Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestWriteDebitWithBreakdownInverts(t *testing.T) {
	svc, gdb := newTestService(t)

	in := WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP777",
		OrderID:     "order-4",
		Event:       "PURCHASE_CHARGEBACK",
		Commissions: []CommissionLine{
			{Source: SourceMarketplace, Value: decimal.NewFromInt(10), Currency: "BRL"},
			{Source: SourceProducer, Value: decimal.NewFromInt(90), Currency: "BRL"},
		},
		GrossTotal:    decimal.NewFromInt(100),
		GrossCurrency: "BRL",
	}
	_, err := svc.Write(context.Background(), in)
	require.NoError(t, err)

	byActor := entriesByActor(t, gdb, "HP777")
	require.Len(t, byActor, 2)
	for actor, event := range byActor {
		assert.Equal(t, domain.EventTypeChargeback, event.EventType)
		assert.True(t, event.Amount.IsNegative(), "chargeback entry for %s must be negative", actor)
	}
}
