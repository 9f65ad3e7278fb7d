package order

import (
	"github.com/trackpilot/revsync/internal/order/repository"
	"github.com/trackpilot/revsync/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
