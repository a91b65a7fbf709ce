package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/config"
	"github.com/smallbiznis/marketfill/internal/credentials"
	"github.com/smallbiznis/marketfill/internal/fulfillment"
	fulfillmentdomain "github.com/smallbiznis/marketfill/internal/fulfillment/domain"
	"github.com/smallbiznis/marketfill/internal/ledger"
	ledgerdomain "github.com/smallbiznis/marketfill/internal/ledger/domain"
	"github.com/smallbiznis/marketfill/internal/marketplace"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	"github.com/smallbiznis/marketfill/internal/notification"
	"github.com/smallbiznis/marketfill/internal/observability"
	obsmiddleware "github.com/smallbiznis/marketfill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/marketfill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/marketfill/internal/observability/tracing"
	"github.com/smallbiznis/marketfill/internal/providers/email"
	"github.com/smallbiznis/marketfill/internal/ratelimit"
	"github.com/smallbiznis/marketfill/internal/webhook"
)

var Module = fx.Module("http.server",
	credentials.Module,
	marketplace.Module,
	ledger.Module,
	fulfillment.Module,
	email.Module,
	notification.Module,
	webhook.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	dashboard      *config.DashboardHolder
	fulfillmentSvc fulfillmentdomain.Service
	ledgerSvc      ledgerdomain.Service
	client         marketplacedomain.Client
	processor      *webhook.Processor
	limiter        *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Dashboard      *config.DashboardHolder
	FulfillmentSvc fulfillmentdomain.Service
	LedgerSvc      ledgerdomain.Service
	Client         marketplacedomain.Client
	Processor      *webhook.Processor
	Limiter        *ratelimit.WebhookLimiter
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("server"),
		dashboard:      p.Dashboard,
		fulfillmentSvc: p.FulfillmentSvc,
		ledgerSvc:      p.LedgerSvc,
		client:         p.Client,
		processor:      p.Processor,
		limiter:        p.Limiter,
	}
}

func registerRoutes(s *Server) {
	s.RegisterLandingRoutes()
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
	s.RegisterWebhookRoutes()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterLandingRoutes() {
	landing := s.engine.Group("/landing", s.IdentityContext())

	landing.GET("/resolve", s.ResolveToken)
	landing.POST("/provision", s.ProvisionSubscription)
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.IdentityContext())

	api.GET("/subscriptions", s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.GetSubscription)
	api.GET("/subscriptions/:id/plans", s.ListAvailablePlans)
	api.POST("/subscriptions/:id/plan", s.UpdatePlan)
	api.POST("/subscriptions/:id/quantity", s.UpdateQuantity)
	api.DELETE("/subscriptions/:id", s.Unsubscribe)
	api.GET("/subscriptions/:id/operations", s.ListOperations)
	api.GET("/subscriptions/:id/operations/:operationId", s.GetOperationVerdict)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin", s.IdentityContext(), s.AdminRequired())

	admin.GET("/subscriptions/:id/activate", s.ActivateFromMail)
	admin.GET("/subscriptions/:id/plan", s.UpdatePlanFromMail)
	admin.GET("/subscriptions/:id/operations/:operationId/confirm", s.ConfirmOperation)
	admin.GET("/subscriptions/:id/operations/:operationId/decline", s.DeclineOperation)
}

func (s *Server) RegisterWebhookRoutes() {
	s.engine.POST("/webhook", s.ReceiveWebhook)
}
