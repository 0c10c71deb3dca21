package app

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-service/internal/scheduling"
)

// POST /voice/check-availability
// Any failure short of a bad request degrades to an empty listing with a
// narration the agent can read out.
func (a *App) VoiceCheckAvailabilityHandler(c *gin.Context) {
	var req checkAvailabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !tenantAccess(c, req.TenantRef) {
		return
	}
	av, err := a.Scheduling.ListAvailableSlotsOn(c.Request.Context(), req.TenantRef, req.Date, req.DaysAhead)
	if err != nil {
		if scheduling.IsValidation(err) || errors.Is(err, scheduling.ErrNotFound) {
			writeError(c, err)
			return
		}
		log.Printf("app: voice availability degraded tenant=%s: %v", req.TenantRef, err)
		c.JSON(http.StatusOK, availabilityResp{Slots: []slotDTO{}, Narration: scheduling.NarrationUnavailable})
		return
	}
	c.JSON(http.StatusOK, toAvailabilityResp(av))
}

// POST /voice/book
func (a *App) VoiceBookHandler(c *gin.Context) {
	var req bookSlotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TenantRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantRef required"})
		return
	}
	if !tenantAccess(c, req.TenantRef) {
		return
	}
	a.book(c, req.TenantRef, req, scheduling.BookedByVoiceAgent)
}
