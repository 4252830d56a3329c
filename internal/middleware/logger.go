package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/surveillance-engine/pkg/logger"
)

// Logger emits one structured line per request.
func Logger(lg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		evt := lg.ZL.Info()
		status := c.Writer.Status()
		switch {
		case status >= 500:
			evt = lg.ZL.Error()
		case status >= 400:
			evt = lg.ZL.Warn()
		}

		evt.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
