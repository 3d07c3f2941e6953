package logger

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// gin context keys shared with the HTTP middleware
const (
	ginLoggerKey    = "logger"
	ginRequestIDKey = "request_id"
	ginTenantIDKey  = "tenant_id"
)

// GinMiddleware writes one access entry per request and makes a request logger available
// through GetGinLogger and, for code below the handlers, through L(ctx).
// Successful requests to quietPaths (probes) are logged at debug.
func GinMiddleware(logger *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetString(ginRequestIDKey)
		reqLogger := logger.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Set(ginLoggerKey, reqLogger)

		ctx := WithContext(c.Request.Context(), reqLogger)
		if requestID != "" {
			ctx = WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		level := accessLevel(status)
		if level == zapcore.InfoLevel && slices.Contains(quietPaths, c.Request.URL.Path) {
			level = zapcore.DebugLevel
		}
		if ce := reqLogger.Check(level, "HTTP Request"); ce != nil {
			ce.Write(accessFields(c, status, time.Since(start))...)
		}
	}
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func accessFields(c *gin.Context, status int, latency time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("host", c.Request.Host),
		zap.String("client_ip", c.ClientIP()),
		zap.Int("body_size", c.Writer.Size()),
	}
	if route := c.FullPath(); route != "" {
		fields = append(fields, zap.String("route", route))
	}
	if query := c.Request.URL.RawQuery; query != "" {
		fields = append(fields, zap.String("query", query))
	}
	// Present only when tenant binding succeeded
	if tenantID := c.GetString(ginTenantIDKey); tenantID != "" {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
	}
	return fields
}

// Recovery turns a handler panic into a 500. Any tenant transaction is rolled back by the
// binding middleware when the panic unwinds through it.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("Panic recovered",
				zap.String("request_id", c.GetString(ginRequestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("host", c.Request.Host),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			if !c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger, or a no-op logger outside GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if zl, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return zl
	}
	return zap.NewNop()
}
