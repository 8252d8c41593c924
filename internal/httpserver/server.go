// Package httpserver exposes the small ops HTTP surface every cmd/*
// binary mounts alongside its main work loop: liveness, readiness, and
// Prometheus metrics.
package httpserver

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/csic-platform/eth-indexer/internal/logging"
)

// ReadinessChecker reports whether the process's dependencies (DB,
// Redis, chain RPC) are currently reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// DBReadiness adapts a *sql.DB ping into a ReadinessChecker.
type DBReadiness struct{ DB *sql.DB }

// Ready pings the database.
func (d DBReadiness) Ready(ctx context.Context) error { return d.DB.PingContext(ctx) }

// Server wraps a gin.Engine serving /healthz, /readyz, and /metrics.
type Server struct {
	engine *gin.Engine
	log    *logging.Logger
}

// New builds a Server. serviceName is reported on /healthz for
// operators running several binaries against the same dashboard.
func New(serviceName string, readiness ReadinessChecker, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		if readiness == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		if err := readiness.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{engine: engine, log: log}
}

// Run starts serving on addr, blocking until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ops http server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
