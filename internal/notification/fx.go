package notification

import (
	"context"

	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sinksParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     config.Config
	DB      *gorm.DB
	Tenants *tenant.Directory
	Log     *zap.Logger
}

// NewSinks assembles the configured sinks. The inbox is always present.
func NewSinks(p sinksParams) []Sink {
	sinks := []Sink{NewInboxSink(p.DB)}

	if email := NewEmailSink(p.Cfg.Email, p.DB, p.Tenants, p.Log); email != nil {
		sinks = append(sinks, email)
	} else {
		p.Log.Info("email notifications disabled")
	}

	if k := NewKafkaSink(p.Cfg.Kafka); k != nil {
		sinks = append(sinks, k)
		p.Lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return k.Close()
			},
		})
	} else {
		p.Log.Info("kafka notifications disabled")
	}
	return sinks
}

var Module = fx.Module("notification",
	fx.Provide(NewSinks),
	fx.Provide(NewDispatcher),
	fx.Provide(func(d *Dispatcher) Publisher { return d }),
)
