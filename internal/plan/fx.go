package plan

import (
	"github.com/fitsuite/licensehub/internal/plan/repository"
	"github.com/fitsuite/licensehub/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewReader),
)
