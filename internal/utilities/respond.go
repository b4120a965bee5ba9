package utilities

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
)

// RespondError writes err as JSON using the status of its error code.
// Errors outside the taxonomy are logged and answered with a generic 500.
func RespondError(c *gin.Context, log logger.Logger, err error) {
	if appErr, ok := apperror.As(err); ok {
		status := appErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			log.WithError(err).Warn("request failed", map[string]interface{}{
				"path": c.FullPath(),
				"code": string(appErr.Code),
			})
		}
		c.JSON(status, ErrorResponse{
			Error:   appErr.Message,
			Code:    string(appErr.Code),
			Details: appErr.Metadata,
		})
		return
	}

	log.WithError(err).Error("unexpected error", map[string]interface{}{
		"path":   c.FullPath(),
		"method": c.Request.Method,
	})
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}
