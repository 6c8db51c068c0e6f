package functions

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	loggerKey       = "immotax.logger"
	requestIDHeader = "X-Request-ID"
)

// requestLogger attaches a logger carrying the request id to the request and
// logs the request once served.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(loggerKey, s.log.With(zap.String("request_id", id)))

		start := time.Now()
		c.Next()

		logger(c).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// logger returns the request-scoped logger.
func logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		return v.(*zap.Logger)
	}
	return zap.NewNop()
}

// function wraps the handler of a named function: it adds the function name
// to the logger and measures the invocation.
func (s *Server) function(name string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loggerKey, logger(c).With(zap.String("function", name)))
		start := time.Now()
		h(c)
		durations.WithLabelValues(name).Observe(time.Since(start).Seconds())
		invocations.WithLabelValues(name, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
