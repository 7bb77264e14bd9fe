package observability

import (
	"github.com/territorio/backend/internal/config"
	"github.com/territorio/backend/internal/observability/logger"
	"github.com/territorio/backend/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
	),
	fx.Invoke(ensureWorkerMetrics),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Environment != "production",
		SlowQueryThreshold:  cfg.DBSlowQueryThreshold,
	}
}

func ensureWorkerMetrics(cfg config.Config) {
	metrics.WorkerWithConfig(metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}
