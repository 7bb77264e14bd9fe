package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/checkout"
	"github.com/territorio/backend/internal/clock"
	"github.com/territorio/backend/internal/config"
	"github.com/territorio/backend/internal/fee"
	"github.com/territorio/backend/internal/ledger"
	"github.com/territorio/backend/internal/migration"
	"github.com/territorio/backend/internal/observability"
	"github.com/territorio/backend/internal/payout"
	"github.com/territorio/backend/internal/sellertxn"
	"github.com/territorio/backend/internal/settlement"
	"github.com/territorio/backend/internal/territory"
	"github.com/territorio/backend/internal/worker"
	"github.com/territorio/backend/pkg/db"
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

		// Functional Domains
		territory.Module,
		checkout.Module,
		fee.Module,
		ledger.Module,
		sellertxn.Module,
		settlement.Module,
		payout.Module,
		worker.Module,
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
