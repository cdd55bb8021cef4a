package license

import (
	"github.com/fitsuite/licensehub/internal/license/repository"
	"github.com/fitsuite/licensehub/internal/license/service"
	"go.uber.org/fx"
)

var Module = fx.Module("license.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
