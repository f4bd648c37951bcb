package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/api/websocket"
	"github.com/KevinKickass/OpenLadderCore/internal/config"
)

// Core is the runtime surface exposed over HTTP. It mirrors the four
// BLE characteristics: read config, write config, read monitor, read
// one wire.
type Core interface {
	ConfigBlob() ([]byte, error)
	Snapshot() ([]byte, error)
	OneWireReport() ([]byte, error)
	Ingest(chunk []byte)
	WireCount() int
}

type Server struct {
	router  *gin.Engine
	core    Core
	logger  *zap.Logger
	server  *http.Server
	wsHub   *websocket.Hub
	maxBody int64
}

func NewServer(cfg *config.Config, core Core, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		core:    core,
		logger:  logger,
		wsHub:   wsHub,
		maxBody: int64(cfg.Runtime.MaxConfigSize),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	s.router.GET("/healthz", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/monitor", s.getMonitor)
		v1.GET("/onewire", s.getOneWire)
		v1.GET("/config", s.getConfig)
		v1.POST("/config", s.postConfig)
	}

	s.router.GET("/ws", s.wsLiveConnection)
}

// WebSocket handler
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"wires":     s.core.WireCount(),
	})
}
