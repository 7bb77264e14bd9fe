package fee

import (
	"github.com/territorio/backend/internal/fee/repository"
	"github.com/territorio/backend/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
