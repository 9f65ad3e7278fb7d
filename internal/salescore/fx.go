package salescore

import (
	"github.com/trackpilot/revsync/internal/salescore/repository"
	"github.com/trackpilot/revsync/internal/salescore/service"
	"go.uber.org/fx"
)

var Module = fx.Module("salescore.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
