package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"activity-sync/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.InvocationEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/invocation-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "invocation emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.InvocationPayload{
			EventID: requestIDFromContext(c),
			Handler: "debug",
			Outcome: "ok",
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
