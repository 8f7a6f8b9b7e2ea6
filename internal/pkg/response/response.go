// Package response provides the JSON response helpers shared by all handlers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infraerrors "github.com/courseflow/courseflow/internal/pkg/errors"
)

// ErrorBody is the envelope for error responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data as-is with HTTP 200.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Code: "BAD_REQUEST", Message: message})
}

func UnprocessableEntity(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorBody{Code: "VALIDATION_FAILED", Message: message})
}

func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorBody{Code: "NOT_FOUND", Message: message})
}

func ServiceUnavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, ErrorBody{Code: "SERVICE_UNAVAILABLE", Message: message})
}

func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Code: "INTERNAL_ERROR", Message: message})
}

// ErrorFrom maps an application error to its HTTP status and envelope.
func ErrorFrom(c *gin.Context, err error) {
	appErr := infraerrors.FromError(err)
	c.JSON(appErr.Status, ErrorBody{Code: appErr.Code, Message: appErr.Message})
}
