package submitter

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("submitter",
	fx.Provide(New),
	fx.Invoke(RunSubmitter),
)

// RunSubmitter starts the batch loop on application start and stops it with
// the fx lifecycle.
func RunSubmitter(lc fx.Lifecycle, sub *Submitter) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sub.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
