package app

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-service/internal/scheduling"
)

// writeError maps the scheduling error taxonomy onto HTTP. Every body carries
// a narration telling the caller what to do next.
func writeError(c *gin.Context, err error) {
	var ve *scheduling.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     ve.Error(),
			"narration": "I couldn't use that request: " + ve.Error() + ". Please check the details and try again.",
		})
	case errors.Is(err, scheduling.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"narration": scheduling.NarrationConflict,
		})
	case errors.Is(err, scheduling.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case scheduling.IsStoreFailure(err), errors.Is(err, context.DeadlineExceeded):
		log.Printf("app: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "temporarily unavailable",
			"narration": scheduling.NarrationRetry,
		})
	default:
		log.Printf("app: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
