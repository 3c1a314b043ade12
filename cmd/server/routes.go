package main

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.loggingMiddleware(), corsMiddleware(s.config.AllowedOrigins))

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.service.Metrics().Handler()))

	api := router.Group("/api")
	maps := api.Group("/maps")
	maps.GET("", s.handleListMaps)
	maps.POST("", s.handleIngest)
	maps.GET("/:id", s.handleGetMap)
	maps.GET("/:id/audio", s.handleAudio)
	maps.GET("/:id/cover", s.handleCover)
	maps.GET("/:id/state", s.handleState)
	maps.GET("/:id/export", s.handleExport)

	api.GET("/search", s.handleSearch)
	api.POST("/visible", s.handleVisible)
	api.POST("/catalog/import", s.handleCatalogImport)

	return router
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := allowAll
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if slices.Contains(allowedOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			allowed = true
		}

		if allowed {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// loggingMiddleware logs every request with its status and latency
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugf("%s %s from %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// logStartup prints the listen address and endpoint list
func (s *Server) logStartup() {
	s.log.Infof("🚀 MapVault server starting on %s", s.config.Addr)
	s.log.Infof("   Backend: %s", s.config.Backend)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                  - Health check")
	s.log.Infof("   GET    /metrics                 - Prometheus metrics")
	s.log.Infof("   GET    /api/maps                - List maps")
	s.log.Infof("   POST   /api/maps                - Ingest a map binary")
	s.log.Infof("   GET    /api/maps/:id            - Map metadata")
	s.log.Infof("   GET    /api/maps/:id/audio      - Audio payload")
	s.log.Infof("   GET    /api/maps/:id/cover      - Cover payload")
	s.log.Infof("   GET    /api/maps/:id/state      - Loader state")
	s.log.Infof("   GET    /api/maps/:id/export     - Rebuilt map binary")
	s.log.Infof("   GET    /api/search?q=           - Search maps")
	s.log.Infof("   POST   /api/visible             - Report visible maps")
	s.log.Infof("   POST   /api/catalog/import      - Import the remote catalog")
}
