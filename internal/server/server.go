package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fitsuite/licensehub/internal/accounting"
	accountingservice "github.com/fitsuite/licensehub/internal/accounting/service"
	"github.com/fitsuite/licensehub/internal/cache"
	"github.com/fitsuite/licensehub/internal/config"
	"github.com/fitsuite/licensehub/internal/idempotency"
	"github.com/fitsuite/licensehub/internal/license"
	licenseservice "github.com/fitsuite/licensehub/internal/license/service"
	"github.com/fitsuite/licensehub/internal/notification"
	"github.com/fitsuite/licensehub/internal/observability"
	obsmiddleware "github.com/fitsuite/licensehub/internal/observability/logger"
	obsmetrics "github.com/fitsuite/licensehub/internal/observability/metrics"
	obstracing "github.com/fitsuite/licensehub/internal/observability/tracing"
	"github.com/fitsuite/licensehub/internal/order"
	orderservice "github.com/fitsuite/licensehub/internal/order/service"
	"github.com/fitsuite/licensehub/internal/payment"
	paymentservice "github.com/fitsuite/licensehub/internal/payment/service"
	"github.com/fitsuite/licensehub/internal/payment/webhook"
	"github.com/fitsuite/licensehub/internal/plan"
	"github.com/fitsuite/licensehub/internal/ratelimit"
	"github.com/fitsuite/licensehub/internal/referral"
	referralservice "github.com/fitsuite/licensehub/internal/referral/service"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services wires every domain module the HTTP surface and the CLI share.
var Services = fx.Options(
	cache.Module,
	tenant.Module,
	plan.Module,
	idempotency.Module,
	license.Module,
	referral.Module,
	accounting.Module,
	order.Module,
	notification.Module,
	ratelimit.Module,
	payment.Module,
)

var Module = fx.Module("http.server",
	Services,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	db        *gorm.DB
	log       *zap.Logger
	processor *paymentservice.Processor
	links     *paymentservice.LinkService
	webhooks  *webhook.Service
	licenses  *licenseservice.Service
	referrals *referralservice.Service
	orders    *orderservice.Service
	books     *accountingservice.Service
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Processor *paymentservice.Processor
	Links     *paymentservice.LinkService
	Webhooks  *webhook.Service
	Licenses  *licenseservice.Service
	Referrals *referralservice.Service
	Orders    *orderservice.Service
	Books     *accountingservice.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		db:        p.DB,
		log:       p.Log.Named("http.server"),
		processor: p.Processor,
		links:     p.Links,
		webhooks:  p.Webhooks,
		licenses:  p.Licenses,
		referrals: p.Referrals,
		orders:    p.Orders,
		books:     p.Books,
	}

	s.registerPublicRoutes()
	s.registerAdminRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	r := s.engine

	r.GET("/payment-links", s.CreatePaymentLink)
	r.GET("/crear-link-pago", s.CreateLegacyPaymentLink)
	r.POST("/webhook", s.HandleWebhook)

	r.GET("/success", s.PaymentReturn("success"))
	r.GET("/exito", s.PaymentReturn("success"))
	r.GET("/éxito", s.PaymentReturn("success"))
	r.GET("/failure", s.PaymentReturn("failure"))
	r.GET("/pending", s.PaymentReturn("pending"))
}

func (s *Server) registerAdminRoutes() {
	api := s.engine.Group("/api", s.AdminRequired())

	api.POST("/payments/:payment_id/process", s.ProcessPayment)

	tenants := api.Group("/tenants/:tenant_id")
	{
		tenants.GET("/license", s.GetLicense)
		tenants.POST("/orders/:order_id/settle", s.SettleOrder)

		tenants.GET("/referrals", s.GetReferralConfig)
		tenants.POST("/referrals/redeem", s.RedeemReferralPoints)
		tenants.POST("/referrals/claims", s.RegisterReferralClaim)

		tenants.GET("/revenue/daily/:day", s.GetDailyRevenue)
		tenants.GET("/revenue/monthly/:month", s.GetMonthlyRevenue)

		tenants.GET("/inbox", s.ListInbox)
		tenants.POST("/inbox/:message_id/read", s.MarkInboxRead)
	}
}
