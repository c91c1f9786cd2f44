// Package api exposes the classification engine over HTTP: single and
// batch evaluation, reference-table inspection and reload, the review
// worklist, and a websocket stream for long-running cohort runs.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/cache"
	"github.com/neuroonc-procedure-classifier/internal/classifier"
	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/middleware"
	"github.com/neuroonc-procedure-classifier/internal/reference"
	"github.com/neuroonc-procedure-classifier/internal/repository"
	"github.com/neuroonc-procedure-classifier/internal/review"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	engine        *classifier.Engine
	refs          *reference.Store
	results       *repository.ResultRepository
	reviews       review.Store
	cache         *cache.ResultCache
	log           *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// Options carries the optional collaborators. Any of them may be nil; the
// corresponding endpoints respond 503.
type Options struct {
	Results *repository.ResultRepository
	Reviews review.Store
	Cache   *cache.ResultCache
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, engine *classifier.Engine, refs *reference.Store, opts Options, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	server := &Server{
		configManager: configManager,
		engine:        engine,
		refs:          refs,
		results:       opts.Results,
		reviews:       opts.Reviews,
		cache:         opts.Cache,
		log:           logger,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.log.WithField("addr", addr).Info("API server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/classify", s.handleClassify)
		v1.POST("/classify/batch", s.handleClassifyBatch)

		v1.GET("/reference", s.handleDescribeReference)
		v1.POST("/reference/reload", s.handleReloadReference)

		v1.GET("/results/:procedure_id", s.handleGetResult)
		v1.GET("/worklist", s.handleListLowConfidence)

		v1.POST("/reviews", s.handleSaveReview)
		v1.GET("/reviews", s.handleListReviews)
		v1.GET("/reviews/export", s.handleExportReviews)
	}

	// Websocket streaming for long cohort runs
	s.router.GET("/ws/classify", s.handleClassifyStream)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now(),
		"engine_version":   classifier.EngineVersion,
		"artifact_version": s.refs.Current().Version(),
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
