package ledger

import (
	"github.com/trackpilot/revsync/internal/ledger/repository"
	"github.com/trackpilot/revsync/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
