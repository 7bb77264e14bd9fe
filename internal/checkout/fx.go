package checkout

import (
	"github.com/territorio/backend/internal/checkout/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout",
	fx.Provide(repository.Provide),
)
