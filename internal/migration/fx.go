package migration

import (
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/flatsale/domain"
	ledgerdomain "github.com/trackpilot/revsync/internal/ledger/domain"
	orderdomain "github.com/trackpilot/revsync/internal/order/domain"
	projectdomain "github.com/trackpilot/revsync/internal/project/domain"
	eventdomain "github.com/trackpilot/revsync/internal/providerevent/domain"
	salescoredomain "github.com/trackpilot/revsync/internal/salescore/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-postgres targets (sqlite for local runs) use the gorm
			// schema directly.
			return conn.AutoMigrate(
				&projectdomain.Project{},
				&eventdomain.ProviderEvent{},
				&orderdomain.Order{},
				&orderdomain.OrderItem{},
				&orderdomain.ProviderOrderMap{},
				&ledgerdomain.LedgerEvent{},
				&salescoredomain.SalesCoreEvent{},
				&domain.FlatSaleRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
