package app

import (
	"time"

	"booking-service/internal/scheduling"
)

type tenantReq struct {
	Name                string `json:"name"`
	Timezone            string `json:"timezone" binding:"required"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	BufferMinutes       int    `json:"buffer_minutes"`
	MaxSlots            int    `json:"max_slots"`
}

type availabilityRuleReq struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// checkAvailabilityReq is the voice-agent availability request. Tenant routes
// take the tenant from the path and date/days from the query string.
type checkAvailabilityReq struct {
	TenantRef string `json:"tenantRef" binding:"required"`
	Date      string `json:"date,omitempty"`
	DaysAhead int    `json:"daysAhead,omitempty"`
}

type slotDTO struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Datetime string `json:"datetime"`
}

type availabilityResp struct {
	Slots             []slotDTO `json:"slots"`
	Narration         string    `json:"narration"`
	CalendarConnected bool      `json:"calendarConnected"`
}

type bookSlotReq struct {
	TenantRef       string `json:"tenantRef,omitempty"`
	Datetime        string `json:"datetime" binding:"required"`
	AttendeeName    string `json:"attendeeName" binding:"required"`
	AttendeePhone   string `json:"attendeePhone,omitempty"`
	AttendeeEmail   string `json:"attendeeEmail,omitempty" binding:"omitempty,email"`
	MeetingType     string `json:"meetingType" binding:"required"`
	Notes           string `json:"notes,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	CallRef         string `json:"callRef,omitempty"`
}

type bookSlotResp struct {
	AppointmentID    string                  `json:"appointmentId,omitempty"`
	ExternalEventRef string                  `json:"externalEventRef,omitempty"`
	Narration        string                  `json:"narration"`
	Appointment      *scheduling.Appointment `json:"appointment,omitempty"`
}

type calendarStatusResp struct {
	Connected       bool       `json:"connected"`
	CalendarID      string     `json:"calendar_id,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

func toSlotDTOs(slots []scheduling.CandidateSlot, loc *time.Location) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, s := range slots {
		local := s.Start.In(loc)
		out = append(out, slotDTO{
			Date:     local.Format("Monday, January 2"),
			Time:     local.Format("3:04 PM"),
			Datetime: local.Format(time.RFC3339),
		})
	}
	return out
}

func toAvailabilityResp(av *scheduling.Availability) availabilityResp {
	return availabilityResp{
		Slots:             toSlotDTOs(av.Slots, av.Location),
		Narration:         scheduling.DescribeAvailability(av),
		CalendarConnected: av.CalendarConnected,
	}
}

func normalizeMeetingType(s string) scheduling.MeetingType {
	switch s {
	case "in-person", "inperson", "in_person":
		return scheduling.MeetingInPerson
	}
	return scheduling.MeetingType(s)
}
