package backfill

import (
	"github.com/trackpilot/revsync/internal/backfill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("backfill.service",
	fx.Provide(service.New),
)
