package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/everafterhq/everafter/internal/billing"
	"github.com/everafterhq/everafter/internal/billingevent"
	"github.com/everafterhq/everafter/internal/config"
	"github.com/everafterhq/everafter/internal/identity"
	"github.com/everafterhq/everafter/internal/migration"
	"github.com/everafterhq/everafter/internal/observability"
	"github.com/everafterhq/everafter/internal/payment"
	"github.com/everafterhq/everafter/internal/profile"
	"github.com/everafterhq/everafter/internal/ratelimit"
	"github.com/everafterhq/everafter/internal/server"
	"github.com/everafterhq/everafter/internal/signup"
	"github.com/everafterhq/everafter/internal/wedding"
	"github.com/everafterhq/everafter/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		ratelimit.Module,

		payment.Module,
		identity.Module,
		billingevent.Module,
		profile.Module,
		wedding.Module,
		signup.Module,
		billing.Module,

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
