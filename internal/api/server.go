// Package api exposes the engine over HTTP and websockets.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"crypto-signal-engine/internal/backtest"
	"crypto-signal-engine/internal/events"
	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/signal"
	"crypto-signal-engine/internal/store"
)

// Config holds the HTTP server settings
type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	// BacktestDefaults fills simulation parameters a backtest request leaves
	// unset. A zero value falls back to backtest.DefaultConfig.
	BacktestDefaults backtest.Config
}

// Server wires the HTTP API, websocket hub, and engine components together
type Server struct {
	config    Config
	router    *gin.Engine
	log       *logging.Logger
	composer  *signal.Composer
	validator *signal.Validator
	bus       *events.EventBus
	repo      *store.Repository // nil when persistence is disabled
	hub       *WSHub
	httpSrv   *http.Server
}

// NewServer creates the API server and registers all routes. repo may be nil.
func NewServer(cfg Config, composer *signal.Composer, validator *signal.Validator, bus *events.EventBus, repo *store.Repository, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowOrigins
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		config:    cfg,
		router:    router,
		log:       log.WithComponent("api"),
		composer:  composer,
		validator: validator,
		bus:       bus,
		repo:      repo,
		hub:       NewWSHub(log),
	}

	router.Use(s.requestLogger())
	s.registerRoutes()

	// Everything published on the bus reaches websocket clients.
	bus.SubscribeAll(s.hub.BroadcastEvent)

	return s
}

// requestLogger attaches a trace-scoped logger to each request context and
// logs the request once it completes. Clients may supply their own trace ID
// via the X-Trace-ID header.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = logging.GenerateTraceID()
		}

		l := s.log.WithTraceID(traceID)
		c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), l))

		c.Next()

		l.WithDuration(time.Since(start)).Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
		)
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/signals/analyze", s.handleAnalyze)
		api.GET("/signals/recent", s.handleRecentSignals)
		api.DELETE("/signals/history", s.handleClearHistory)

		api.POST("/backtest", s.handleBacktest)
		api.GET("/backtest/recent", s.handleRecentBacktests)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the websocket hub and the HTTP listener. Blocks until the
// listener stops.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("API server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
