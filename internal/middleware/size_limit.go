package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Room for multipart boundaries and part headers around the file itself.
const multipartOverhead = int64(8 * 1024)

// SizeLimit caps the request body at maxBodyBytes plus multipart overhead.
// Handlers reading past it get *http.MaxBytesError and answer 413.
func SizeLimit(maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes+multipartOverhead)
		c.Next()
	}
}
