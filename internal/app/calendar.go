package app

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-service/internal/gcal"
	"booking-service/internal/scheduling"
)

// GET /tenants/:id/calendar/connect
// Returns the Google consent URL. The state parameter is a signed token naming
// the tenant, checked again in the callback.
func (a *App) CalendarConnectHandler(c *gin.Context) {
	if a.Calendar == nil || !a.Calendar.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	tenantID := c.Param("id")
	if _, err := a.Scheduling.GetTenant(c.Request.Context(), tenantID); err != nil {
		writeError(c, err)
		return
	}
	state, err := signState(a.StateSecret, tenantID, a.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign state"})
		return
	}
	url, err := a.Calendar.AuthURL(state)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": url})
}

// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Calendar == nil || !a.Calendar.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization denied: " + e})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	tenantID, err := parseState(a.StateSecret, c.Query("state"), a.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, err := a.Calendar.Connect(c.Request.Context(), tenantID, code, "")
	if err != nil {
		log.Printf("app: calendar connect tenant=%s: %v", tenantID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to connect calendar"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Authorization successful",
		"tenant_id":   tenantID,
		"calendar_id": cred.CalendarID,
	})
}

// GET /tenants/:id/calendar
func (a *App) CalendarStatusHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusOK, calendarStatusResp{})
		return
	}
	cred, err := a.Calendar.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, scheduling.ErrNotFound) {
		c.JSON(http.StatusOK, calendarStatusResp{})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	refreshed := cred.LastRefreshedAt
	c.JSON(http.StatusOK, calendarStatusResp{
		Connected:       cred.Status == gcal.StatusConnected,
		CalendarID:      cred.CalendarID,
		LastRefreshedAt: &refreshed,
	})
}

// DELETE /tenants/:id/calendar
func (a *App) CalendarDisconnectHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	err := a.Calendar.Disconnect(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, scheduling.ErrNotFound) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
