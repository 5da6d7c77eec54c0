// Package httpsurface is the JSON API surface: one route per filesystem
// operation, a uniform response envelope, CORS, and a prometheus /metrics
// endpoint.
package httpsurface

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	liberr "github.com/sabouaram/storegate/errors"
	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
)

// envelope is the uniform JSON response shape of the API routes, built on
// the DefaultReturn/GinTonicAbort pattern (errors/return.go) extended with
// the data/success fields the JSON API needs. A successful download streams
// the object body instead.
type envelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	ErrorID string `json:"errorId,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Code: http.StatusOK, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Code: http.StatusCreated, Data: data})
}

func noContent(c *gin.Context) {
	c.JSON(http.StatusNoContent, envelope{Success: true, Code: http.StatusNoContent})
}

func fail(c *gin.Context, err error) {
	status := gwerr.HTTPStatus(err)
	c.AbortWithStatusJSON(status, envelope{
		Success: false,
		Code:    status,
		Message: err.Error(),
		ErrorID: errorID(err),
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Success: false,
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

func errorID(err error) string {
	e := liberr.Get(err)
	if e == nil {
		return ""
	}
	return fmt.Sprintf("E%d", e.GetCode())
}
