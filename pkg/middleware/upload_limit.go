package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadLimit caps the request body at maxBytes. Reads past the cap fail, which
// makes multipart parsing return an error the handler reports as 413.
// maxBytes <= 0 disables the cap.
func UploadLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Upload exceeds the maximum allowed size"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
