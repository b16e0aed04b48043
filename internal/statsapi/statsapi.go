// Package statsapi exposes the pipeline's metrics snapshot over a tiny
// gin-backed JSON surface: observability, not the excluded web
// configuration UI.
package statsapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	bridge "github.com/wingbridge/corepipeline"
)

// Server wraps a gin.Engine serving /stats and /healthz.
type Server struct {
	engine  *gin.Engine
	metrics *bridge.Metrics
}

// New builds the stats server around an already-constructed Metrics
// instance (normally bridge.Pipeline.Metrics()).
func New(metrics *bridge.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, metrics: metrics}
	engine.GET("/stats", s.handleStats)
	engine.GET("/healthz", s.handleHealthz)
	return s
}

// Run starts the HTTP listener on addr and blocks until the listener
// fails; Server has no shutdown method.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
