package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/foxseedlab/tablesession/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrUnauthorized), errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, session.ErrInvalidState), errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the status mapped from err. Internal
// failures never expose their message.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", c.Request.Method, "path", c.FullPath())
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
