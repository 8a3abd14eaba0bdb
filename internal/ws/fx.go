package ws

import (
	"context"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("ws",
	fx.Provide(NewRegistry),
	fx.Provide(NewBroadcastService),
	fx.Provide(func(svc *BroadcastService) Broadcaster { return svc }),
	fx.Provide(NewRouter),
	fx.Provide(NewHandler),
	fx.Invoke(runHeartbeat),
)

func runHeartbeat(lc fx.Lifecycle, registry *Registry) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go registry.Run(ctx, 30*time.Second)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
