package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ismaelpamplona/isma.codes/internal/logging"
)

const corsMaxAge = 12 * time.Hour

// NewRouter assembles the gin engine with middleware and all routes.
// allowedOrigins empty means no cross-origin access.
func NewRouter(h *Handler, log logging.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: allowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
			MaxAge:       corsMaxAge,
		}))
	}

	router.Use(requestLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)
	router.GET("/assets/styles/:name", h.GetStylesheet)

	blog := router.Group("/api/blog")
	blog.GET("/posts", h.ListPosts)
	blog.GET("/posts/:slug", h.GetPost)
	blog.GET("/categories", h.ListCategories)
	blog.GET("/categories/:category", h.GetCategory)
	blog.GET("/search", h.SearchPosts)

	router.POST("/api/download-pdf", h.DownloadPDF)
	router.POST("/api/chat", h.Chat)

	prices := router.Group("/api/prices")
	prices.GET("/stream", h.StreamPrices)
	prices.GET("/directory", h.GetDirectory)

	return router
}

// requestLogger logs one line per completed request.
func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			logging.String("method", method),
			logging.String("path", path),
			logging.Int("status", c.Writer.Status()),
			logging.String("client_ip", c.ClientIP()),
			logging.Duration("duration", time.Since(start)),
		)
	}
}
