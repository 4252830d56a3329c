// Package handler holds the HTTP surface. Handlers bind, call a
// service and render the shared envelope; error mapping lives in the
// middleware chain.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/surveillance-engine/internal/model"
)

const headerActor = "X-Actor"

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{Status: "success", Data: data}
}

func NewErrorResponse(message string) *Response {
	return &Response{Status: "error", Message: message}
}

// Meta builds the write metadata for a request. Callers identify
// themselves through the X-Actor header; absent that, the write is
// attributed to the api itself.
func Meta(c *gin.Context) model.RecordMeta {
	actor := c.GetHeader(headerActor)
	if actor == "" {
		actor = "system:api"
	}
	return model.NewRecordMeta(actor, time.Now())
}

// Fail attaches the error for the error middleware to render.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}
