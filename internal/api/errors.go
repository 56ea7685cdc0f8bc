package api

import (
	"net/http"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorMapping struct {
	status int
	code   string
	// message replaces the error text for kinds whose details stay server side
	message string
}

var errorMappings = map[error]errorMapping{
	models.ErrConflict:           {http.StatusConflict, "CONFLICT", ""},
	models.ErrInvalidCredentials: {http.StatusUnauthorized, "UNAUTHORIZED", ""},
	models.ErrForbidden:          {http.StatusForbidden, "FORBIDDEN", ""},
	models.ErrNotFound:           {http.StatusNotFound, "NOT_FOUND", ""},
	models.ErrMalformedScan:      {http.StatusBadRequest, "MALFORMED_SCAN", ""},
	models.ErrInvalidInput:       {http.StatusBadRequest, "INVALID_REQUEST", ""},
	models.ErrDependency:         {http.StatusBadGateway, "DEPENDENCY_FAILURE", "A required service failed"},
	models.ErrTransient:          {http.StatusServiceUnavailable, "TEMPORARILY_UNAVAILABLE", "Service temporarily unavailable, retry the request"},
}

// writeError aborts the request with the ErrorResponse for err's kind.
// Errors without a kind are internal errors.
func writeError(c *gin.Context, log logrus.FieldLogger, err error) {
	mapping, ok := errorMappings[models.Kind(err)]
	if !ok {
		mapping = errorMapping{http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"}
	}

	message := mapping.message
	if message == "" {
		message = err.Error()
	} else {
		log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"code":       mapping.code,
		}).WithError(err).Error("request failed")
	}

	c.AbortWithStatusJSON(mapping.status, models.ErrorResponse{
		Status:  "error",
		Code:    mapping.code,
		Message: message,
	})
}

// writeBindError reports a request body or parameter that failed to parse
func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}
