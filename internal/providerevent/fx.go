package providerevent

import (
	"github.com/trackpilot/revsync/internal/providerevent/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("providerevent.repository",
	fx.Provide(repository.Provide),
)
