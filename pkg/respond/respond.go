// Package respond writes the portal's JSON envelope:
// {"data": ...} on success, {"error": {"message": CODE}} on failure.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Message is a machine-readable failure code shown to clients.
type Message string

const (
	DBError            Message = "DB_ERROR"
	AlreadyExists      Message = "ALREADY_EXISTS"
	BadRequestMsg      Message = "BAD_REQUEST"
	InternalErrorMsg   Message = "INTERNAL_ERROR"
	UnauthorizedMsg    Message = "UNAUTHORIZED"
	AccountDeactivated Message = "ACCOUNT_DEACTIVATED"
	NotFound           Message = "NOT_FOUND"
	RateLimited        Message = "RATE_LIMITED"
)

type ErrorBody struct {
	Message Message `json:"message"`
}

type Envelope struct {
	Error *ErrorBody `json:"error,omitempty"`
	Data  any        `json:"data,omitempty"`
}

func Error(c *gin.Context, status int, msg Message) {
	c.AbortWithStatusJSON(status, Envelope{Error: &ErrorBody{Message: msg}})
}

func BadRequest(c *gin.Context, msg Message) {
	if msg == "" {
		msg = BadRequestMsg
	}
	Error(c, http.StatusBadRequest, msg)
}

func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, InternalErrorMsg)
}

// Unauthorized is the only body a rejected request ever sees.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, UnauthorizedMsg)
}

func JSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Data: data})
}

func Success(c *gin.Context) {
	JSON(c, gin.H{})
}
