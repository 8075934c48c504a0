package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingservice "github.com/everafterhq/everafter/internal/billing/service"
	"github.com/everafterhq/everafter/internal/config"
	obslogger "github.com/everafterhq/everafter/internal/observability/logger"
	obsmetrics "github.com/everafterhq/everafter/internal/observability/metrics"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	"github.com/everafterhq/everafter/internal/ratelimit"
	signupdomain "github.com/everafterhq/everafter/internal/signup/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(log, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	log        *zap.Logger
	signupSvc  signupdomain.Service
	reconciler *billingservice.Reconciler
	payments   paymentdomain.Gateway
	limiter    ratelimit.Limiter
	metrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	SignupSvc  signupdomain.Service
	Reconciler *billingservice.Reconciler
	Payments   paymentdomain.Gateway
	Limiter    ratelimit.Limiter
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		signupSvc:  p.SignupSvc,
		reconciler: p.Reconciler,
		payments:   p.Payments,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
	}

	svc.registerSignupRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSignupRoutes() {
	s.engine.POST("/checkout",
		s.RateLimit(ratelimit.Config{
			Limit:  s.cfg.RateLimit.CheckoutLimit,
			Window: time.Duration(s.cfg.RateLimit.CheckoutWindowSec) * time.Second,
			Prefix: "checkout",
		}),
		s.StartCheckout,
	)
	s.engine.POST("/verify-payment",
		s.RateLimit(ratelimit.Config{
			Limit:  s.cfg.RateLimit.VerifyLimit,
			Window: time.Duration(s.cfg.RateLimit.VerifyWindowSec) * time.Second,
			Prefix: "verify",
		}),
		s.VerifyPayment,
	)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhook", s.HandleWebhook)
}
