package worker

import (
	"context"

	"github.com/territorio/backend/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("worker",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartWorker),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:       cfg.WorkerRunInterval,
		TickTimeout:       cfg.WorkerTickTimeout,
		RecoveryThreshold: cfg.WorkerRecoveryThreshold,
		FrequencyWindow:   cfg.WorkerFrequencyWindow,
	}.withDefaults()
}

func StartWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go w.RunForever(ctx)

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
