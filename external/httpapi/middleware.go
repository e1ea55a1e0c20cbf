package httpapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foxseedlab/tablesession/internal/identity"
)

const actorKey = "tablesession.actor"

func authMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			writeError(c, fmt.Errorf("%w: authorization header missing", identity.ErrUnauthenticated))
			return
		}
		actor, err := provider.Authenticate(c.Request.Context(), header)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) identity.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(identity.Actor)
	return actor
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
