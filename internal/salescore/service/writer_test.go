package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackpilot/revsync/internal/salescore/domain"
	"github.com/trackpilot/revsync/internal/salescore/repository"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.SalesCoreEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewWithOffset(gdb, nil, node, repository.Provide(), -3), gdb
}

func snapshotInput(net int64) WriteInput {
	return WriteInput{
		ProjectID:   "proj-1",
		Provider:    "hotmart",
		Transaction: "HP123",
		Event:       "PURCHASE_APPROVED",
		EventType:   "purchase",
		GrossAmount: decimal.NewFromInt(100),
		NetAmount:   decimal.NewFromInt(net),
		PlatformFee: decimal.NewFromInt(10),
		Currency:    "BRL",
		OccurredAt:  time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func activeVersions(t *testing.T, gdb *gorm.DB, key string) []*domain.SalesCoreEvent {
	t.Helper()
	var events []*domain.SalesCoreEvent
	require.NoError(t, gdb.
		Where("provider_event_id = ? AND is_active = ?", key, true).
		Find(&events).Error)
	return events
}

func TestWriteFirstSightInsertsVersionOne(t *testing.T) {
	svc, gdb := newTestService(t)

	outcome, err := svc.Write(context.Background(), snapshotInput(80))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	active := activeVersions(t, gdb, "hotmart_HP123_PURCHASE_APPROVED")
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Version)
	assert.Equal(t, "2024-05-10", active[0].EconomicDay)
}

func TestWriteUnchangedAmountsSkip(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, snapshotInput(80))
	require.NoError(t, err)

	outcome, err := svc.Write(ctx, snapshotInput(80))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	var count int64
	require.NoError(t, gdb.Model(&domain.SalesCoreEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWriteChangedNetCreatesNewVersion(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, snapshotInput(80))
	require.NoError(t, err)
	_, err = svc.Write(ctx, snapshotInput(80))
	require.NoError(t, err)

	outcome, err := svc.Write(ctx, snapshotInput(75))
	require.NoError(t, err)
	assert.Equal(t, OutcomeVersioned, outcome)

	active := activeVersions(t, gdb, "hotmart_HP123_PURCHASE_APPROVED")
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Version)
	assert.True(t, active[0].NetAmount.Equal(decimal.NewFromInt(75)))

	var total int64
	require.NoError(t, gdb.Model(&domain.SalesCoreEvent{}).Count(&total).Error)
	assert.EqualValues(t, 2, total)
}

func TestWriteDryRunReportsOutcomeWithoutWriting(t *testing.T) {
	svc, gdb := newTestService(t)
	ctx := context.Background()

	dry := snapshotInput(80)
	dry.DryRun = true
	outcome, err := svc.Write(ctx, dry)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	var count int64
	require.NoError(t, gdb.Model(&domain.SalesCoreEvent{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	_, err = svc.Write(ctx, snapshotInput(80))
	require.NoError(t, err)

	outcome, err = svc.Write(ctx, dry)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	changed := snapshotInput(75)
	changed.DryRun = true
	outcome, err = svc.Write(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVersioned, outcome)

	require.NoError(t, gdb.Model(&domain.SalesCoreEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEconomicDayOffsetCrossesMidnight(t *testing.T) {
	// 01:30 UTC with a -3h offset lands on the previous calendar day.
	at := time.Date(2024, 5, 10, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-09", EconomicDay(at, -3))
	assert.Equal(t, "2024-05-10", EconomicDay(at, 0))
}
