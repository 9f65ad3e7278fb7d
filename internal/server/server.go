package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trackpilot/revsync/internal/backfill"
	backfillsvc "github.com/trackpilot/revsync/internal/backfill/service"
	"github.com/trackpilot/revsync/internal/config"
	"github.com/trackpilot/revsync/internal/currency"
	"github.com/trackpilot/revsync/internal/flatsale"
	"github.com/trackpilot/revsync/internal/ledger"
	"github.com/trackpilot/revsync/internal/logger"
	"github.com/trackpilot/revsync/internal/metrics"
	"github.com/trackpilot/revsync/internal/order"
	"github.com/trackpilot/revsync/internal/project"
	projectdomain "github.com/trackpilot/revsync/internal/project/domain"
	"github.com/trackpilot/revsync/internal/providerevent"
	"github.com/trackpilot/revsync/internal/providers"
	"github.com/trackpilot/revsync/internal/salescore"
	"github.com/trackpilot/revsync/internal/webhook"
	webhooksvc "github.com/trackpilot/revsync/internal/webhook/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	currency.Module,
	project.Module,
	providerevent.Module,
	order.Module,
	ledger.Module,
	salescore.Module,
	flatsale.Module,
	providers.Module,
	webhook.Module,
	backfill.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	return NewEngine(log, m)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
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
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	log      *zap.Logger
	projects projectdomain.Repository
	pipeline *webhooksvc.Pipeline
	backfill *backfillsvc.Service
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Projects projectdomain.Repository
	Pipeline *webhooksvc.Pipeline
	Backfill *backfillsvc.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		db:       p.DB,
		log:      p.Log.Named("server"),
		projects: p.Projects,
		pipeline: p.Pipeline,
		backfill: p.Backfill,
	}

	svc.registerWebhookRoutes()
	svc.registerBackfillRoutes()

	return svc
}
