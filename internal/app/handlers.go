package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"booking-service/internal/scheduling"
)

// PUT /tenants/:id
func (a *App) SaveTenantHandler(c *gin.Context) {
	var req tenantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t := &scheduling.Tenant{
		ID:                  c.Param("id"),
		Name:                req.Name,
		Timezone:            req.Timezone,
		SlotDurationMinutes: req.SlotDurationMinutes,
		BufferMinutes:       req.BufferMinutes,
		MaxSlots:            req.MaxSlots,
	}
	if err := a.Scheduling.SaveTenant(c.Request.Context(), t); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /tenants/:id
func (a *App) GetTenantHandler(c *gin.Context) {
	t, err := a.Scheduling.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// PUT /tenants/:id/availability
// Replaces the whole rule set; an empty list clears it.
func (a *App) ReplaceAvailabilityHandler(c *gin.Context) {
	var payload []availabilityRuleReq
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rules := make([]scheduling.AvailabilityRule, 0, len(payload))
	for _, r := range payload {
		rules = append(rules, scheduling.AvailabilityRule{DayOfWeek: r.DayOfWeek, StartTime: r.StartTime, EndTime: r.EndTime})
	}
	saved, err := a.Scheduling.ReplaceAvailability(c.Request.Context(), c.Param("id"), rules)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// GET /tenants/:id/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	rules, err := a.Scheduling.ListAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rules == nil {
		rules = []scheduling.AvailabilityRule{}
	}
	c.JSON(http.StatusOK, rules)
}

// GET /tenants/:id/slots?date=YYYY-MM-DD&days=N
func (a *App) GetSlotsHandler(c *gin.Context) {
	days := 0
	if s := c.Query("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
	}
	av, err := a.Scheduling.ListAvailableSlotsOn(c.Request.Context(), c.Param("id"), c.Query("date"), days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAvailabilityResp(av))
}

// POST /tenants/:id/appointments
func (a *App) CreateAppointmentHandler(c *gin.Context) {
	var req bookSlotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bookedBy := scheduling.BookedByClient
	if c.GetString(ctxRole) == RoleAdmin {
		bookedBy = scheduling.BookedByAdmin
	}
	a.book(c, c.Param("id"), req, bookedBy)
}

func (a *App) book(c *gin.Context, tenantID string, req bookSlotReq, bookedBy scheduling.BookedBy) {
	ctx := c.Request.Context()
	start, loc, err := a.Scheduling.ResolveDateTime(ctx, tenantID, req.Datetime)
	if err != nil {
		writeError(c, err)
		return
	}
	appt, err := a.Scheduling.BookSlot(ctx, scheduling.BookingRequest{
		TenantID:        tenantID,
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		Type:            normalizeMeetingType(req.MeetingType),
		Notes:           req.Notes,
		Attribution: scheduling.Attribution{
			BookedBy:    bookedBy,
			CallerName:  req.AttendeeName,
			CallerPhone: req.AttendeePhone,
			CallerEmail: req.AttendeeEmail,
			CallRef:     req.CallRef,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookSlotResp{
		AppointmentID:    appt.ID,
		ExternalEventRef: appt.ExternalEventRef,
		Narration:        scheduling.DescribeBooking(appt, loc),
		Appointment:      appt,
	})
}

// GET /tenants/:id/appointments?from=ISO&to=ISO
func (a *App) ListAppointmentsHandler(c *gin.Context) {
	fromStr := c.Query("from")
	toStr := c.Query("to")

	var from, to time.Time
	if fromStr != "" && toStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
	}

	appts, err := a.Scheduling.ListAppointments(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	if appts == nil {
		appts = []scheduling.Appointment{}
	}
	c.JSON(http.StatusOK, appts)
}

// POST /tenants/:id/appointments/:appointment_id/cancel
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	appt, err := a.Scheduling.CancelAppointment(c.Request.Context(), c.Param("id"), c.Param("appointment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// POST /tenants/:id/appointments/:appointment_id/complete
func (a *App) CompleteAppointmentHandler(c *gin.Context) {
	appt, err := a.Scheduling.CompleteAppointment(c.Request.Context(), c.Param("id"), c.Param("appointment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
