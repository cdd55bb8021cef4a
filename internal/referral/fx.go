package referral

import (
	"github.com/fitsuite/licensehub/internal/referral/repository"
	"github.com/fitsuite/licensehub/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
