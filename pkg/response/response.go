package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

// Envelope is the response contract shared by every dashboard endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}) {
	noStore(c)
	c.JSON(status, Envelope{Success: true, Data: data})
}

// List sends a success response carrying a total count.
func List(c *gin.Context, data interface{}, count int) {
	noStore(c)
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Count: &count})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error converts err to the common failure shape. The message is passed
// through verbatim, including wrapped causes.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	_ = c.Error(err)
	c.JSON(appErr.Status, Envelope{Success: false, Error: appErr.Error(), Code: appErr.Code})
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
