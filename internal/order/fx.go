package order

import (
	accountingservice "github.com/fitsuite/licensehub/internal/accounting/service"
	"github.com/fitsuite/licensehub/internal/order/repository"
	"github.com/fitsuite/licensehub/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(s *accountingservice.Service) service.Recorder { return s }),
	fx.Provide(service.NewService),
)
