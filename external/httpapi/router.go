package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/identity"
)

// NewRouter wires the lifecycle API under /api and the live endpoint under
// /ws. Only /api routes require a bearer token.
func NewRouter(cfg *config.Config, provider identity.Provider, lifecycle Lifecycle, dispatcher EventDispatcher, rooms Rooms) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &sessionHandler{lifecycle: lifecycle, dispatcher: dispatcher}
	api := router.Group("/api", authMiddleware(provider))
	sessions := api.Group("/sessions")
	sessions.POST("", h.create)
	sessions.GET("", h.list)
	sessions.GET("/:id", h.get)
	sessions.POST("/:id/join", h.join)
	sessions.POST("/:id/leave", h.leave)
	sessions.PATCH("/:id/start", h.start)
	sessions.PATCH("/:id/end", h.end)
	sessions.POST("/:id/event", h.event)

	live := newLiveHandler(rooms, cfg.WSAllowedOrigins, cfg.LiveSendBuffer)
	router.GET("/ws/sessions", live.serve)
	return router
}
