package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/salloumtech/fatoora/internal/authority"
	"github.com/salloumtech/fatoora/internal/clock"
	"github.com/salloumtech/fatoora/internal/config"
	"github.com/salloumtech/fatoora/internal/ingest"
	"github.com/salloumtech/fatoora/internal/invoice"
	"github.com/salloumtech/fatoora/internal/logger"
	"github.com/salloumtech/fatoora/internal/migration"
	"github.com/salloumtech/fatoora/internal/server"
	"github.com/salloumtech/fatoora/internal/submitter"
	"github.com/salloumtech/fatoora/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Pipeline domains
		invoice.Module,
		ingest.Module,
		authority.Module,
		submitter.Module,

		// HTTP surface
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
