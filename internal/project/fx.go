package project

import (
	"github.com/trackpilot/revsync/internal/project/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("project.repository",
	fx.Provide(repository.Provide),
)
