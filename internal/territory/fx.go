package territory

import (
	"github.com/territorio/backend/internal/territory/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("territory",
	fx.Provide(repository.Provide),
)
