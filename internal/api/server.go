package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ict-dashboard/config"
	"ict-dashboard/internal/market"
	"ict-dashboard/internal/paper"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per client.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the dashboard HTTP API.
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	client     *market.Client
	ledger     *paper.Ledger
	hub        *WSHub
	limiter    *RateLimiter
	logger     zerolog.Logger
	stopStream chan struct{}
}

// NewServer wires up routes and middleware.
func NewServer(cfg *config.Config, client *market.Client, ledger *paper.Ledger, logger zerolog.Logger) *Server {
	gin.SetMode(cfg.Server.GinMode)

	s := &Server{
		cfg:        cfg,
		router:     gin.New(),
		client:     client,
		ledger:     ledger,
		hub:        NewWSHub(),
		limiter:    NewRateLimiter(cfg.Server.RateLimit, time.Duration(cfg.Server.RateLimitWindow)*time.Second),
		logger:     logger.With().Str("component", "api").Logger(),
		stopStream: make(chan struct{}),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))
	s.router.Use(metricsMiddleware())

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", metricsHandler())
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/candles", s.handleGetCandles)
		api.GET("/analysis", s.handleGetAnalysis)
		api.GET("/signals", s.handleGetSignals)
		api.POST("/backtest", s.handleRunBacktest)

		api.GET("/paper/account", s.handleGetAccount)
		api.PUT("/paper/balance", s.handleUpdateBalance)
		api.POST("/paper/reset", s.handleResetAccount)
		api.GET("/paper/positions", s.handleGetPositions)
		api.POST("/paper/positions", s.handleOpenPosition)
		api.POST("/paper/positions/:id/close", s.handleClosePosition)
		api.GET("/paper/history", s.handleGetHistory)
	}
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			errorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Start runs the HTTP server and the websocket snapshot stream. Blocks
// until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.runSnapshotStream()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Int("port", s.cfg.Server.Port).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops the stream and gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopStream)
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}
