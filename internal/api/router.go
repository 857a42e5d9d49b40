package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with recovery, request logging and
// the registered routes.
func NewRouter(h *Handler, m *MiddlewareManager) *gin.Engine {
	r := gin.New()
	r.Use(m.Recovery(), m.Logger())

	RegisterRoutes(r, h, m)
	return r
}

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, h *Handler, m *MiddlewareManager) {
	// Public routes
	r.GET("/healthz", h.Healthz)

	// Protected routes
	api := r.Group("/api")
	api.Use(m.SecretAuth(), m.RateLimit())
	{
		api.POST("/refresh", h.Refresh)
	}
}
