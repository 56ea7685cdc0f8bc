package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Context keys set by the middleware
const (
	requestIDKey = "requestId"
	identityKey  = "identity"
	tokenKey     = "token"
)

// RequestID tags each request with the caller's X-Request-ID or a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request once it has been handled
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if identity, ok := c.Get(identityKey); ok {
			entry = entry.WithField("identity_id", identity.(*models.Identity).ID)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request handled")
		case status >= http.StatusBadRequest:
			entry.Warn("request handled")
		default:
			entry.Info("request handled")
		}
	}
}

// AuthMiddleware returns a Gin middleware for authentication. The token is
// resolved to the identity as currently stored, so role changes and deletes
// take effect on the next request.
func AuthMiddleware(svc service.Service, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: "Authentication required",
			})
			return
		}

		// Check if the Authorization header starts with "Bearer "
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: "Invalid token format",
			})
			return
		}

		tokenString := parts[1]

		identity, err := svc.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			writeError(c, log, err)
			return
		}

		c.Set(identityKey, identity)
		c.Set(tokenKey, tokenString)
		c.Next()
	}
}

// currentIdentity returns the identity AuthMiddleware resolved
func currentIdentity(c *gin.Context) *models.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		panic(fmt.Sprintf("%s used without AuthMiddleware", c.FullPath()))
	}
	return value.(*models.Identity)
}
