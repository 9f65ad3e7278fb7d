package flatsale

import (
	"github.com/trackpilot/revsync/internal/flatsale/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("flatsale.repository",
	fx.Provide(repository.Provide),
)
