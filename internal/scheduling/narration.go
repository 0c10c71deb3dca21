package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const (
	NarrationUnavailable   = "I'm unable to check availability right now. Can I take your contact information and have someone call you back?"
	NarrationNotConfigured = "Online booking isn't available yet. Can I take your contact information so someone can follow up?"
	NarrationNoSlots       = "There are no open times in that range. Would you like me to check other days?"
	NarrationNoCalendar    = "I don't have a connected calendar and there are no open times in that range. Can I take your contact information so someone can follow up?"
	NarrationConflict      = "That time is no longer available. Please choose another time."
	NarrationRetry         = "I couldn't finish the booking just now. Please try again in a moment."
	narrationMaxOptions    = 3
)

// SpokenTime renders t in loc as "Monday, October 20 at 9:00 AM".
func SpokenTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Monday, January 2 at 3:04 PM")
}

// DescribeAvailability phrases a listing for a conversational caller.
func DescribeAvailability(av *Availability) string {
	switch {
	case !av.HasRules:
		return NarrationNotConfigured
	case len(av.Slots) == 0 && av.CalendarDegraded:
		return NarrationUnavailable
	case len(av.Slots) == 0 && av.CalendarConfigured && !av.CalendarConnected:
		return NarrationNoCalendar
	case len(av.Slots) == 0:
		return NarrationNoSlots
	}
	n := len(av.Slots)
	if n > narrationMaxOptions {
		n = narrationMaxOptions
	}
	opts := make([]string, 0, n)
	for _, s := range av.Slots[:n] {
		opts = append(opts, SpokenTime(s.Start, av.Location))
	}
	var b strings.Builder
	if len(av.Slots) == 1 {
		b.WriteString("I have one opening: ")
	} else {
		fmt.Fprintf(&b, "I have %d openings. The earliest are ", len(av.Slots))
	}
	b.WriteString(joinSpoken(opts))
	b.WriteString(". Which works best for you?")
	return b.String()
}

// DescribeBooking confirms a booked appointment.
func DescribeBooking(appt *Appointment, loc *time.Location) string {
	return fmt.Sprintf("You're booked for a %d-minute %s appointment on %s.",
		appt.DurationMinutes, meetingLabel(appt.Type), SpokenTime(appt.StartAt, loc))
}

func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}
