package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"webhookrecv/internal/api/handlers"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *pterm.Logger
	port   int
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Production     bool
	TrustedProxies []string // Empty means the peer address is always the source
	RequestLogging bool     // gin access log, enabled at debug/trace level
	RateLimitRPS   float64  // 0 disables per-client limiting
	RateLimitBurst int
}

// Handlers groups the route handlers
type Handlers struct {
	Webhook  *handlers.WebhookHandler
	History  *handlers.HistoryHandler
	Realtime *handlers.RealtimeHandler
	Metrics  http.Handler
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config, h Handlers, logger *pterm.Logger) *Server {
	// Set Gin mode
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("Invalid trusted proxies, trusting none", logger.Args("error", err))
		_ = router.SetTrustedProxies(nil)
	}

	// Middleware
	if cfg.RequestLogging {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// Admin routes, registered before the catch-all
	router.GET("/", h.History.GetStatus)
	router.GET("/_history", h.History.ListHistory)
	router.GET("/_history/:id", h.History.GetRequest)
	router.DELETE("/_history", h.History.ClearHistory)
	router.GET("/_export", h.History.Export)
	router.POST("/_snapshot", h.History.SaveSnapshot)
	router.GET("/_stream", h.Realtime.StreamRequests)

	// Everything else is a webhook
	capture := []gin.HandlerFunc{h.Webhook.Capture}
	if cfg.RateLimitRPS > 0 {
		pool := newLimiterPool(cfg.RateLimitRPS, cfg.RateLimitBurst)
		capture = append([]gin.HandlerFunc{rateLimitMiddleware(pool)}, capture...)
		logger.Info("Rate limiting enabled",
			logger.Args("rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst))
	}
	router.HandleMethodNotAllowed = false
	router.RedirectTrailingSlash = false
	router.NoRoute(capture...)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		router: router,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger: logger,
		port:   cfg.Port,
	}
}

// Handler returns the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("Starting web server", s.logger.Args("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithCaller().Error("Web server failed", s.logger.Args("error", err))
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server...")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
