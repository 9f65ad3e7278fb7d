package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/currency"
	ledgerdomain "github.com/trackpilot/revsync/internal/ledger/domain"
	ledgerrepo "github.com/trackpilot/revsync/internal/ledger/repository"
	ledgersvc "github.com/trackpilot/revsync/internal/ledger/service"
	orderdomain "github.com/trackpilot/revsync/internal/order/domain"
	orderrepo "github.com/trackpilot/revsync/internal/order/repository"
	eventdomain "github.com/trackpilot/revsync/internal/providerevent/domain"
	eventrepo "github.com/trackpilot/revsync/internal/providerevent/repository"
	salescoredomain "github.com/trackpilot/revsync/internal/salescore/domain"
	salescorerepo "github.com/trackpilot/revsync/internal/salescore/repository"
	salescoresvc "github.com/trackpilot/revsync/internal/salescore/service"
	webhookdomain "github.com/trackpilot/revsync/internal/webhook/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestBackfill(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&eventdomain.ProviderEvent{},
		&orderdomain.ProviderOrderMap{},
		&ledgerdomain.LedgerEvent{},
		&salescoredomain.SalesCoreEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	normalizer := currency.NewStatic(config.RatesConfig{
		Settlement: "BRL",
		Rates:      map[string]float64{"USD": 5},
	}, log)

	svc := &Service{
		db:     gdb,
		log:    log,
		events: eventrepo.Provide(),
		orders: orderrepo.Provide(),
		ledger: ledgersvc.New(ledgersvc.Params{
			DB:         gdb,
			Log:        log,
			GenID:      node,
			Repo:       ledgerrepo.Provide(),
			Normalizer: normalizer,
		}),
		salescore:  salescoresvc.NewWithOffset(gdb, log, node, salescorerepo.Provide(), -3),
		normalizer: normalizer,
	}
	return svc, gdb
}

func storeEvent(t *testing.T, gdb *gorm.DB, node *snowflake.Node, transaction, event string, producer float64) {
	t.Helper()

	envelope := webhookdomain.Envelope{
		ID:           transaction + "-" + event,
		CreationDate: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Event:        event,
		Data: webhookdomain.Data{
			Purchase: webhookdomain.Purchase{
				Transaction: transaction,
				Price:       webhookdomain.Money{Value: 100, CurrencyValue: "BRL"},
			},
		},
	}
	if producer != 0 {
		envelope.Data.Commissions = []webhookdomain.Commission{
			{Value: producer, CurrencyValue: "BRL", Source: ledgersvc.SourceProducer},
		}
	}
	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	require.NoError(t, gdb.Create(&eventdomain.ProviderEvent{
		ID:              node.Generate(),
		ProjectID:       "proj-1",
		Provider:        "hotmart",
		ProviderEventID: envelope.ID,
		Event:           event,
		TransactionID:   transaction,
		Status:          eventdomain.StatusProcessed,
		ReceivedAt:      time.Now().UTC(),
		RawPayload:      body,
	}).Error)
}

func TestRunReplaysStoredEvents(t *testing.T) {
	svc, gdb := newTestBackfill(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	storeEvent(t, gdb, node, "HP100", "PURCHASE_APPROVED", 90)
	storeEvent(t, gdb, node, "HP100", "PURCHASE_BILLET_PRINTED", 0)

	report, err := svc.Run(context.Background(), Request{ProjectID: "proj-1", PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Replayed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 1, report.Outcomes[0].LedgerWritten)

	var ledgerRows int64
	require.NoError(t, gdb.Model(&ledgerdomain.LedgerEvent{}).Count(&ledgerRows).Error)
	assert.EqualValues(t, 1, ledgerRows)
}

func TestRunIsIdempotentAgainstWebhookPath(t *testing.T) {
	svc, gdb := newTestBackfill(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	ctx := context.Background()

	storeEvent(t, gdb, node, "HP200", "PURCHASE_APPROVED", 90)

	first, err := svc.Run(ctx, Request{ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Replayed)

	second, err := svc.Run(ctx, Request{ProjectID: "proj-1"})
	require.NoError(t, err)
	require.Len(t, second.Outcomes, 1)
	assert.Equal(t, 0, second.Outcomes[0].LedgerWritten)
	assert.Equal(t, 1, second.Outcomes[0].LedgerSkipped)
	assert.Equal(t, string(salescoresvc.OutcomeUnchanged), second.Outcomes[0].SnapshotState)

	var ledgerRows int64
	require.NoError(t, gdb.Model(&ledgerdomain.LedgerEvent{}).Count(&ledgerRows).Error)
	assert.EqualValues(t, 1, ledgerRows)
}

func TestRunDryRunPredictsWithoutWriting(t *testing.T) {
	svc, gdb := newTestBackfill(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	ctx := context.Background()

	storeEvent(t, gdb, node, "HP300", "PURCHASE_APPROVED", 90)

	report, err := svc.Run(ctx, Request{ProjectID: "proj-1", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 1, report.Outcomes[0].LedgerWritten)
	assert.Equal(t, 0, report.Outcomes[0].LedgerSkipped)
	assert.Equal(t, string(salescoresvc.OutcomeInserted), report.Outcomes[0].SnapshotState)

	var ledgerRows, snapshotRows int64
	require.NoError(t, gdb.Model(&ledgerdomain.LedgerEvent{}).Count(&ledgerRows).Error)
	require.NoError(t, gdb.Model(&salescoredomain.SalesCoreEvent{}).Count(&snapshotRows).Error)
	assert.EqualValues(t, 0, ledgerRows)
	assert.EqualValues(t, 0, snapshotRows)

	// After a real run the same dry run predicts the idempotent skips.
	_, err = svc.Run(ctx, Request{ProjectID: "proj-1"})
	require.NoError(t, err)

	report, err = svc.Run(ctx, Request{ProjectID: "proj-1", DryRun: true})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 0, report.Outcomes[0].LedgerWritten)
	assert.Equal(t, 1, report.Outcomes[0].LedgerSkipped)
	assert.Equal(t, string(salescoresvc.OutcomeUnchanged), report.Outcomes[0].SnapshotState)

	require.NoError(t, gdb.Model(&ledgerdomain.LedgerEvent{}).Count(&ledgerRows).Error)
	assert.EqualValues(t, 1, ledgerRows)
}
