package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires every route. auth guards everything but the OAuth callback
// and the health check.
func (a *App) NewRouter(auth gin.HandlerFunc) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	router.Use(auth)

	api := router.Group("/api")
	{
		tenants := api.Group("/tenants/:id", requireTenantAccess())
		{
			tenants.GET("", a.GetTenantHandler)
			tenants.PUT("", requireRole(RoleAdmin, RoleService), a.SaveTenantHandler)
			tenants.GET("/availability", a.ListAvailabilityHandler)
			tenants.PUT("/availability", requireRole(RoleAdmin, RoleService), a.ReplaceAvailabilityHandler)
			tenants.GET("/slots", a.GetSlotsHandler)
			tenants.POST("/appointments", a.idempotent(), a.CreateAppointmentHandler)
			tenants.GET("/appointments", requireRole(RoleAdmin, RoleService), a.ListAppointmentsHandler)
			tenants.POST("/appointments/:appointment_id/cancel", a.CancelAppointmentHandler)
			tenants.POST("/appointments/:appointment_id/complete", requireRole(RoleAdmin, RoleService), a.CompleteAppointmentHandler)

			// Google Calendar connection
			calendar := tenants.Group("/calendar", requireRole(RoleAdmin, RoleService))
			{
				calendar.GET("", a.CalendarStatusHandler)
				calendar.GET("/connect", a.CalendarConnectHandler)
				calendar.DELETE("", a.CalendarDisconnectHandler)
			}
		}

		voice := api.Group("/voice", requireRole(RoleService, RoleAdmin))
		{
			voice.POST("/check-availability", a.VoiceCheckAvailabilityHandler)
			voice.POST("/book", a.idempotent(), a.VoiceBookHandler)
		}
	}
	return router
}
