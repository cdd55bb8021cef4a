package payment

import (
	"github.com/fitsuite/licensehub/internal/payment/mercadopago"
	"github.com/fitsuite/licensehub/internal/payment/repository"
	"github.com/fitsuite/licensehub/internal/payment/service"
	"github.com/fitsuite/licensehub/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(mercadopago.NewClient),
	fx.Provide(service.NewProcessor),
	fx.Provide(service.NewLinkService),
	fx.Provide(webhook.NewService),
)
