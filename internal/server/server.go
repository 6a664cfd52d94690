// Package server is the HTTP gateway between the browser UI and the session
// store. It carries the REST surface plus a websocket events channel.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bidmatch/internal/config"
)

// NewRouter assembles the gin engine with CORS, request logging and all
// application routes.
func NewRouter(cfg config.Config, h *Handler, hub *Hub, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{cfg.CORSOrigin},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))

	router.Use(requestLogger(log))

	v1 := router.Group("/api/v1")
	{
		SetupBidRoutes(v1, h)
		SetupReferenceRoutes(v1, h)
		SetupLanguageRoutes(v1, h)
	}

	router.GET("/ws/events", hub.HandleWS)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
