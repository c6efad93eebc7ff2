// Package handlers adapts the messenger services to Gin.
//
// Every failure is written as an ErrorResponse:
//
//	HTTP/1.1 409 Conflict
//	{"request_id": "6f1c...", "code": "conflict", "message": "username already exists"}
//
// Successful creates return an IDResponse with 201; edits and deletes return
// 204 with no body.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client error to server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// One of the ErrCode* constants.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"message not found"`
}

// IDResponse carries the id assigned to a newly created user or message.
type IDResponse struct {
	ID int64 `json:"id" example:"3"`
}

// fail writes the error envelope and aborts the chain. It does not log;
// callers holding an underlying error go through storageFail instead.
func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute and NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
