package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func Logger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		evt := l.Info().
			Str("request_id", c.GetString(RequestIDHeader)).
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency)
		if observer := c.GetString(ObserverIDKey); observer != "" {
			evt = evt.Str("observer_id", observer)
		}
		evt.Msg("request")
	}
}
