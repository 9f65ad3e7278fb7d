package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/locker"
	"github.com/trackpilot/revsync/internal/logger"
	"github.com/trackpilot/revsync/internal/metrics"
	"github.com/trackpilot/revsync/internal/migration"
	"github.com/trackpilot/revsync/internal/server"
	"github.com/trackpilot/revsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(appOptions()...)
	app.Run()
}

// appOptions is the full production composition, shared with the graph
// validation test.
func appOptions() []fx.Option {
	return []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		locker.Module,
		migration.Module,
		server.Module,
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
