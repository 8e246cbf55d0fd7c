// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/salloumtech/fatoora/internal/config"
	"github.com/salloumtech/fatoora/internal/ingest"
	invoicedomain "github.com/salloumtech/fatoora/internal/invoice/domain"
	"github.com/salloumtech/fatoora/internal/submitter"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Server holds the handlers' collaborators.
type Server struct {
	engine     *gin.Engine
	invoiceSvc invoicedomain.Service
	ingestSvc  *ingest.Service
	sub        *submitter.Submitter
}

func NewServer(engine *gin.Engine, invoiceSvc invoicedomain.Service, ingestSvc *ingest.Service, sub *submitter.Submitter) *Server {
	s := &Server{
		engine:     engine,
		invoiceSvc: invoiceSvc,
		ingestSvc:  ingestSvc,
		sub:        sub,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/invoices", s.listInvoices)
	api.GET("/invoices/stats", s.invoiceStats)
	api.GET("/invoices/:id", s.getInvoice)
	api.GET("/invoices/:id/document", s.getInvoiceDocument)
	api.POST("/invoices/import", s.importInvoices)
	api.POST("/invoices/process", s.processInvoices)
}

func run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
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
