package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/auth"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	paymentdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
	paymentservice "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/service"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ratelimit"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitservice "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/service"
	webhookservice "github.com/MphoBeeThwala/ahava-healthcare/internal/webhook/service"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ws"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	verifier   *auth.Verifier
	gateway    paymentdomain.Gateway
	paymentSvc *paymentservice.Service
	visitSvc   *visitservice.Service
	webhookSvc *webhookservice.Service
	wsHandler  *ws.Handler
	limiter    *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Verifier   *auth.Verifier
	Gateway    paymentdomain.Gateway
	PaymentSvc *paymentservice.Service
	VisitSvc   *visitservice.Service
	WebhookSvc *webhookservice.Service
	WSHandler  *ws.Handler
	Limiter    *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("server"),
		genID:      p.GenID,
		verifier:   p.Verifier,
		gateway:    p.Gateway,
		paymentSvc: p.PaymentSvc,
		visitSvc:   p.VisitSvc,
		webhookSvc: p.WebhookSvc,
		wsHandler:  p.WSHandler,
		limiter:    p.Limiter,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/ws", s.wsHandler.Serve)

	s.engine.POST("/webhooks/:provider", s.HandleWebhook)
	s.engine.GET("/webhooks/events",
		s.Authenticated(),
		s.RequireRoles(userdomain.RoleAdmin),
		s.ListWebhookEvents,
	)

	api := s.engine.Group("/api", s.Authenticated())
	{
		payments := api.Group("/payments")
		payments.POST("", s.RequireRoles(userdomain.RoleAdmin), s.CreatePayment)
		payments.POST("/:id/initialize", s.RequireRoles(userdomain.RolePatient, userdomain.RoleAdmin), s.InitializePayment)
		payments.GET("/verify/:reference", s.VerifyPayment)
		payments.POST("/:id/refund", s.RequireRoles(userdomain.RoleAdmin), s.RefundPayment)
		payments.GET("/mine", s.RequireRoles(userdomain.RolePatient), s.ListMyPayments)

		visits := api.Group("/visits")
		visits.GET("/:id/track", s.VisitTrack)
	}
}
