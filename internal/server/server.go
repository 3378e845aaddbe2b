package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/duesflow/duesflow/internal/authorization/domain"
	billingdomain "github.com/duesflow/duesflow/internal/billing/domain"
	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	"github.com/duesflow/duesflow/internal/clock"
	"github.com/duesflow/duesflow/internal/config"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	"github.com/duesflow/duesflow/internal/observability"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
)

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	engine *gin.Engine
	clock  clock.Clock

	authSvc    authdomain.Service
	billingSvc billingdomain.Service
	planSvc    plandomain.Service
	ledgerSvc  ledgerdomain.Service
	chargeSvc  chargedomain.Service
	webhook    chargedomain.WebhookAdapter
}

type Param struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Clock   clock.Clock
	Metrics *observability.Metrics

	Auth    authdomain.Service
	Billing billingdomain.Service
	Plans   plandomain.Service
	Ledger  ledgerdomain.Service
	Charges chargedomain.Service
	Webhook chargedomain.WebhookAdapter
}

func NewServer(p Param) *Server {
	switch p.Cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:   p.Cfg,
		log:   p.Log.Named("server"),
		db:    p.DB,
		clock: p.Clock,

		authSvc:    p.Auth,
		billingSvc: p.Billing,
		planSvc:    p.Plans,
		ledgerSvc:  p.Ledger,
		chargeSvc:  p.Charges,
		webhook:    p.Webhook,
	}
	s.engine = s.buildEngine(p.Metrics)
	return s
}

func (s *Server) buildEngine(metrics *observability.Metrics) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if s.cfg.Server.EnableTestClock {
		engine.Use(s.simulatedClock())
	}

	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})))
	engine.POST("/webhooks/gateway/:provider", s.HandleGatewayWebhook)

	engine.POST("/run-payments", s.AdminAuth(), s.RequireAccess(authdomain.ObjectPayments, authdomain.ActionRun), s.RunPayments)

	api := engine.Group("/api", s.AdminAuth())
	{
		api.POST("/charges", s.RequireAccess(authdomain.ObjectCharges, authdomain.ActionWrite), s.ChargeRegistration)

		api.POST("/payment-plans", s.RequireAccess(authdomain.ObjectPlans, authdomain.ActionWrite), s.CreatePaymentPlan)
		api.GET("/payment-plans/attention", s.RequireAccess(authdomain.ObjectPlans, authdomain.ActionRead), s.ListPlansNeedingAttention)
		api.GET("/payment-plans/:id", s.RequireAccess(authdomain.ObjectPlans, authdomain.ActionRead), s.GetPaymentPlan)
		api.PATCH("/payment-plans/:id/schedule", s.RequireAccess(authdomain.ObjectPlans, authdomain.ActionWrite), s.ShiftPlanSchedule)
		api.PATCH("/installments/:id/schedule", s.RequireAccess(authdomain.ObjectPlans, authdomain.ActionWrite), s.UpdateInstallmentSchedule)

		api.GET("/reconciliation/orphans", s.RequireAccess(authdomain.ObjectReconciliation, authdomain.ActionRead), s.ListOrphans)
		api.GET("/reconciliation/orphans.csv", s.RequireAccess(authdomain.ObjectReconciliation, authdomain.ActionRead), s.ExportOrphans)

		api.POST("/admin-tokens", s.RequireAccess(authdomain.ObjectTokens, authdomain.ActionWrite), s.IssueAdminToken)
		api.DELETE("/admin-tokens/:id", s.RequireAccess(authdomain.ObjectTokens, authdomain.ActionWrite), s.RevokeAdminToken)
	}

	if s.cfg.Server.EnableTestClock {
		engine.GET("/test-clock", s.GetEffectiveTime)
	}

	return engine
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, s *Server) {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: s.engine}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
