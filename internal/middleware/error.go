package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
)

// ErrorResponse is the uniform error envelope. EngineCode carries the
// domain error code when one applies; Code is the HTTP status.
type ErrorResponse struct {
	Code       int    `json:"code"`
	EngineCode int    `json:"engine_code,omitempty"`
	Message    string `json:"message"`
	TraceID    string `json:"trace_id,omitempty"`
}

// ErrorHandler maps errors attached to the gin context onto HTTP
// statuses. Domain error codes carry their own status semantics.
func ErrorHandler(lg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		last := c.Errors.Last().Err

		for _, e := range c.Errors {
			lg.ZL.Error().
				Err(e.Err).
				Str("request_id", traceID).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("request error")
		}

		status := http.StatusInternalServerError
		engineCode := apperrors.ErrInternal
		message := "internal server error"

		var appErr *apperrors.AppError
		if errors.As(last, &appErr) {
			engineCode = appErr.Code
			message = appErr.Message
			status = statusFor(appErr.Code)
		}

		c.JSON(status, ErrorResponse{
			Code:       status,
			EngineCode: int(engineCode),
			Message:    message,
			TraceID:    traceID,
		})
	}
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound, apperrors.ErrProtocolNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrNoWindowMatch:
		return http.StatusBadRequest
	case apperrors.ErrNotReady:
		return http.StatusUnprocessableEntity
	case apperrors.ErrConcurrentUpdateConflict:
		return http.StatusConflict
	case apperrors.ErrNotificationDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
