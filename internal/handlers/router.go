package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the health check and order routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterOrdersRoutes(r, cfg)

	return r
}
