package accounting

import (
	"github.com/fitsuite/licensehub/internal/accounting/repository"
	"github.com/fitsuite/licensehub/internal/accounting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("accounting.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
