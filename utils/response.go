package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondSuccess wraps data in the platform's standard response envelope.
func RespondSuccess(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": data, "meta": meta})
}

// RespondError emits an error with the matching HTTP status.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "error": message})
}
