package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/config"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/manager"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/env"
	enginehttp "github.com/aptitudetechnology/pylua-bioxen-vm/internal/http"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/logging"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/middleware"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/monitoring"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the HTTP control API and its dependencies.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	router  *gin.Engine
	manager *manager.Manager
	httpSrv *http.Server
}

// NewServer assembles the engine and control API from configuration.
func NewServer(cfg *config.Config, log *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.NewDefault()
	}

	envMgr, err := env.New(env.Profile(cfg.Env.Profile), cfg.Engine.Interpreter, cfg.Env.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize environment: %w", err)
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	mgr := manager.New(cfg.Engine, log, manager.WithMetrics(metrics))

	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(monitoring.Middleware(metrics))

	handlers := enginehttp.NewHandlers(mgr, envMgr, log)
	wsHandler := ws.NewHandler(mgr, log, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session lifecycle and I/O
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/stats", handlers.SessionStats)
	router.GET("/sessions/find", handlers.FindSessions)
	router.POST("/sessions/cleanup", handlers.CleanupDead)
	router.POST("/sessions/batch-execute", handlers.BatchExecute)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.RemoveSession)
	router.POST("/sessions/:id/start", handlers.StartSession)
	router.POST("/sessions/:id/terminate", handlers.TerminateSession)
	router.POST("/sessions/:id/detach", handlers.DetachSession)
	router.POST("/sessions/:id/input", handlers.SendInput)
	router.GET("/sessions/:id/output", handlers.ReadOutput)
	router.POST("/sessions/:id/execute", handlers.Execute)
	router.GET("/sessions/:id/stream", wsHandler.HandleStream)

	// Clusters
	router.POST("/clusters", handlers.CreateCluster)
	router.GET("/clusters/:id", handlers.GetCluster)
	router.DELETE("/clusters/:id", handlers.RemoveCluster)

	return &Server{
		cfg:     cfg,
		log:     log,
		router:  router,
		manager: mgr,
	}, nil
}

// Manager exposes the engine facade, mainly for tests.
func (s *Server) Manager() *manager.Manager { return s.manager }

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves the control API until Close or a listener error.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("control API listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close drains the HTTP server and terminates every session.
func (s *Server) Close() error {
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warn("http shutdown failed", zap.Error(err))
		}
	}

	count := s.manager.CleanupAll()
	s.log.Info("shutdown complete", zap.Int("sessions_terminated", count))
	return nil
}
