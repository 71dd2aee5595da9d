// Package respond maps service errors onto the JSON error envelope. Every
// failure answers {success:false, message, error?} with a status that
// reflects the actual cause instead of a blanket 500.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/service"
)

// Error writes the error envelope for err.
func Error(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError

	var validation *model.ValidationError
	var upstream *service.UpstreamError

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrReportNotFound), errors.Is(err, service.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrUsernameExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error(message, zap.Error(err))
	}

	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}
