package webhook

import (
	"github.com/trackpilot/revsync/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.pipeline",
	fx.Provide(service.New),
)
