// Package statusapi serves a small HTTP surface for health checks and
// bridge status. It is an operations endpoint, separate from the MCP
// stdio transport, and is only started when a port is configured.
package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unklstewy/uns-bridge/pkg/mqtt"
)

// Source reports the connection and cache state shown by /status.
type Source interface {
	State() mqtt.ConnState
	Reconnects() int
	ClientID() string
	CacheSize() int
}

// Server is the status HTTP server.
type Server struct {
	logger     *zap.Logger
	source     Source
	broker     string
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a status server listening on the given port.
func NewServer(port int, broker string, source Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:    logger.With(zap.String("component", "statusapi")),
		source:    source,
		broker:    broker,
		startedAt: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.handleHealthz)
	router.GET("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("Status API listening", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status API failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":          s.source.State().String(),
		"broker":         s.broker,
		"client_id":      s.source.ClientID(),
		"reconnects":     s.source.Reconnects(),
		"cached_topics":  s.source.CacheSize(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}
