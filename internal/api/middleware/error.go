package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dlg0/agent-zero/internal/api/models"

	"github.com/gin-gonic/gin"
)

// ErrorHandler middleware converts panics into the standard error envelope
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		msg := "An unexpected error occurred"
		switch v := recovered.(type) {
		case string:
			msg = v
		case error:
			msg = v.Error()
		}
		log.Error("panic recovered", "path", c.Request.URL.Path, "error", msg)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: msg,
			},
		})
		c.Abort()
	})
}
