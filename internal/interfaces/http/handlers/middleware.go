package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/logger"
)

// maxRequestIDLength caps client-supplied request ids before they reach logs.
const maxRequestIDLength = 128

// Middleware groups the request-scoped middlewares shared by every route.
type Middleware struct {
	log logger.Logger
}

// NewMiddleware creates the middleware set.
func NewMiddleware(log logger.Logger) *Middleware {
	return &Middleware{log: log.WithComponent("http")}
}

// RequestID propagates X-Request-ID, generating one when the client sent none, and tags
// every response with the node version.
func (m *Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Header(constants.HeaderRequestID, requestID)
		c.Header(constants.HeaderKeyServerVersion, constants.ServiceVersion)

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		if v := c.GetHeader(constants.HeaderSDKVersion); v != "" {
			ctx = context.WithValue(ctx, constants.ContextKeySDKVersion, v)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(constants.ContextKeyRequestID), requestID)
		c.Next()
	}
}

// Logger logs one line per request.
func (m *Middleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		}
		if v := c.GetHeader(constants.HeaderSDKVersion); v != "" {
			fields = append(fields, logger.String("sdk_version", v))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			m.log.Warn(c.Request.Context(), "Request failed", fields...)
			return
		}
		m.log.Info(c.Request.Context(), "Request processed", fields...)
	}
}

// Recovery turns a handler panic into a coded 500 response.
func (m *Middleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error(c.Request.Context(), "Panic recovered", fmt.Errorf("%v", r),
					logger.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal))
			}
		}()
		c.Next()
	}
}
