package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/factuhub/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects oversized request bodies. Invoice events are small;
// the ceiling mainly protects against runaway certificate uploads.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeValidation, "request body exceeds the allowed size"))
			return
		}
		// Chunked requests have no ContentLength; cap the stream too.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
