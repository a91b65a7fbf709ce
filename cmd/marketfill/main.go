package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/marketfill/internal/config"
	"github.com/smallbiznis/marketfill/internal/migration"
	"github.com/smallbiznis/marketfill/internal/observability"
	"github.com/smallbiznis/marketfill/internal/server"
	"github.com/smallbiznis/marketfill/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
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
