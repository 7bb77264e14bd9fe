package payout

import (
	"github.com/territorio/backend/internal/payout/domain"
	"github.com/territorio/backend/internal/payout/gateway"
	"github.com/territorio/backend/internal/payout/gateway/manual"
	"github.com/territorio/backend/internal/payout/repository"
	"github.com/territorio/backend/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.ProvideConfigRepository),
	fx.Provide(repository.ProvideRepository),
	fx.Provide(newRegistry),
	fx.Provide(service.NewService),
)

func newRegistry() *gateway.Registry {
	return gateway.NewRegistry(factories()...)
}

func factories() []domain.GatewayFactory {
	return []domain.GatewayFactory{
		manual.NewFactory(),
	}
}
