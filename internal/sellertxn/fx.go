package sellertxn

import (
	"github.com/territorio/backend/internal/sellertxn/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("sellertxn",
	fx.Provide(repository.Provide),
)
