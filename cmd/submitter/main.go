// The submitter binary runs the submission loop without the HTTP surface,
// for deployments that scale workers separately from the API.
package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/salloumtech/fatoora/internal/authority"
	"github.com/salloumtech/fatoora/internal/clock"
	"github.com/salloumtech/fatoora/internal/config"
	"github.com/salloumtech/fatoora/internal/invoice"
	"github.com/salloumtech/fatoora/internal/logger"
	"github.com/salloumtech/fatoora/internal/migration"
	"github.com/salloumtech/fatoora/internal/submitter"
	"github.com/salloumtech/fatoora/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		invoice.Module,
		authority.Module,

		// No server module
		submitter.Module,
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
