package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/auth"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/booking"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/logger"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/metrics"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/migration"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/payment"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ratelimit"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/seed"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/server"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/user"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/visit"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/webhook"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ws"
	"github.com/MphoBeeThwala/ahava-healthcare/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		seed.Module,
		metrics.Module,
		ratelimit.Module,

		user.Module,
		booking.Module,
		auth.Module,
		visit.Module,
		payment.Module,
		webhook.Module,
		ws.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
