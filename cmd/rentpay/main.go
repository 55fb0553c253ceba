package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentpay/internal/clock"
	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/metricspush"
	"github.com/smallbiznis/rentpay/internal/migration"
	"github.com/smallbiznis/rentpay/internal/observability"
	"github.com/smallbiznis/rentpay/internal/server"
	"github.com/smallbiznis/rentpay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		// Its final push runs after the server and dispatcher have stopped.
		metricspush.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
