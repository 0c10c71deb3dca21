package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

type BookingRequest struct {
	TenantID string
	Start    time.Time
	// DurationMinutes falls back to the tenant's slot duration when zero.
	DurationMinutes int
	Type            MeetingType
	Attribution     Attribution
	Notes           string
}

// Transactor commits a booking to the external calendar and the local store.
// There is no transaction spanning both, so the order is fixed: re-check,
// create the event, insert the row. The store insert is the final arbiter of
// overlap; a failed event write is queued in the outbox instead of aborting.
type Transactor struct {
	store    Store
	calendar CalendarGateway
	opts     Options
}

func (t *Transactor) validate(req *BookingRequest) error {
	if req.TenantID == "" {
		return &ValidationError{Field: "tenant", Reason: "is required"}
	}
	if req.Start.IsZero() {
		return &ValidationError{Field: "datetime", Reason: "is required"}
	}
	if req.Start.Before(t.opts.Now()) {
		return &ValidationError{Field: "datetime", Reason: "is in the past"}
	}
	if req.DurationMinutes < 0 || req.DurationMinutes > MaxDurationMinutes {
		return &ValidationError{Field: "duration_minutes", Reason: "must be between 1 and 1440"}
	}
	if !req.Type.Valid() {
		return &ValidationError{Field: "meeting_type", Reason: "must be one of phone, video, in_person"}
	}
	if req.Attribution.BookedBy == "" {
		req.Attribution.BookedBy = BookedByClient
	}
	if !req.Attribution.BookedBy.Valid() {
		return &ValidationError{Field: "booked_by", Reason: "must be one of client, admin, voice_agent"}
	}
	return nil
}

// Book reserves [req.Start, req.Start+duration) for the tenant. It returns
// a *ValidationError, ErrConflict, or a *StoreError on failure.
func (t *Transactor) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := t.validate(&req); err != nil {
		return nil, err
	}

	tenant, err := t.store.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, storeErr("get tenant", err)
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = tenant.slotDuration()
	}
	start := req.Start
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	if err := t.recheck(ctx, req.TenantID, start, end); err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:              t.opts.NewID(),
		TenantID:        req.TenantID,
		StartAt:         start.UTC(),
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Status:          StatusScheduled,
		Attribution:     req.Attribution,
		Notes:           req.Notes,
		CalendarSync:    SyncNone,
	}

	var outbox *OutboxEntry
	if t.calendar != nil {
		ref, err := t.createEvent(ctx, tenant, appt)
		switch {
		case err == nil:
			appt.ExternalEventRef = ref
			appt.CalendarSync = SyncSynced
		case errors.Is(err, ErrCalendarNotConnected):
		default:
			log.Printf("booking: calendar event deferred tenant=%s appointment=%s: %v", req.TenantID, appt.ID, err)
			appt.CalendarSync = SyncPending
			outbox = &OutboxEntry{
				ID:            t.opts.NewID(),
				TenantID:      req.TenantID,
				AppointmentID: appt.ID,
				Action:        OutboxCreateEvent,
				NextAttemptAt: t.opts.Now(),
				LastError:     err.Error(),
			}
		}
	}

	sctx, cancel := context.WithTimeout(ctx, t.opts.StoreTimeout)
	err = t.store.InsertAppointment(sctx, appt, outbox)
	cancel()
	if err != nil {
		if appt.ExternalEventRef != "" {
			t.retractOrphan(ctx, appt, err)
		}
		return nil, storeErr("insert appointment", err)
	}
	return appt, nil
}

// recheck runs the narrow pre-commit conflict check against both sources.
func (t *Transactor) recheck(ctx context.Context, tenantID string, start, end time.Time) error {
	local, err := t.store.ListScheduledOverlapping(ctx, tenantID, start, end)
	if err != nil {
		return storeErr("list appointments", err)
	}
	if len(local) > 0 {
		return ErrConflict
	}
	if t.calendar == nil {
		return nil
	}
	fb, err := lookupBusy(ctx, t.calendar, t.opts.CalendarTimeout, tenantID, start, end)
	if err != nil {
		log.Printf("booking: calendar recheck degraded tenant=%s: %v", tenantID, err)
		return nil
	}
	for _, p := range fb.Busy {
		if Overlaps(start, end, p.Start, p.End) {
			return ErrConflict
		}
	}
	return nil
}

func (t *Transactor) createEvent(ctx context.Context, tenant *Tenant, appt *Appointment) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, t.opts.CalendarTimeout)
	defer cancel()
	return t.calendar.CreateEvent(cctx, tenant.ID, EventFor(tenant, appt))
}

// retractOrphan deletes an event whose appointment row was never written, so a
// retried booking does not collide with it. A failed delete is queued.
func (t *Transactor) retractOrphan(ctx context.Context, appt *Appointment, cause error) {
	log.Printf("booking: retracting event tenant=%s event=%s: %v", appt.TenantID, appt.ExternalEventRef, cause)
	retractEvent(ctx, t.store, t.calendar, t.opts.CalendarTimeout, t.opts.NewID(), appt, t.opts.Now())
}

// retractEvent deletes appt's external event, falling back to a delete outbox
// entry when the calendar call fails or no gateway is configured.
func retractEvent(ctx context.Context, store OutboxStore, cal CalendarGateway, timeout time.Duration, entryID string, appt *Appointment, now time.Time) {
	err := ErrCalendarNotConnected
	if cal != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		err = cal.DeleteEvent(cctx, appt.TenantID, appt.ExternalEventRef)
		cancel()
	}
	if err == nil {
		return
	}
	log.Printf("booking: event retraction deferred tenant=%s event=%s: %v", appt.TenantID, appt.ExternalEventRef, err)
	entry := &OutboxEntry{
		ID:            entryID,
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		Action:        OutboxDeleteEvent,
		EventRef:      appt.ExternalEventRef,
		NextAttemptAt: now,
		LastError:     err.Error(),
	}
	if err := store.EnqueueOutbox(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("booking: orphaned calendar event tenant=%s event=%s: %v", appt.TenantID, appt.ExternalEventRef, err)
	}
}

// EventFor renders the external calendar event of an appointment.
func EventFor(tenant *Tenant, appt *Appointment) EventRequest {
	who := appt.Attribution.CallerName
	if who == "" {
		who = "guest"
	}
	var desc strings.Builder
	fmt.Fprintf(&desc, "Meeting type: %s\n", meetingLabel(appt.Type))
	fmt.Fprintf(&desc, "Booked by: %s\n", appt.Attribution.BookedBy)
	if appt.Attribution.CallerPhone != "" {
		fmt.Fprintf(&desc, "Phone: %s\n", appt.Attribution.CallerPhone)
	}
	if appt.Attribution.CallerEmail != "" {
		fmt.Fprintf(&desc, "Email: %s\n", appt.Attribution.CallerEmail)
	}
	if appt.Notes != "" {
		fmt.Fprintf(&desc, "Notes: %s\n", appt.Notes)
	}
	return EventRequest{
		Title:         fmt.Sprintf("%s appointment with %s", meetingTitle(appt.Type), who),
		Description:   strings.TrimSpace(desc.String()),
		Start:         appt.StartAt,
		End:           appt.EndAt(),
		Timezone:      tenant.Timezone,
		AttendeeEmail: appt.Attribution.CallerEmail,
	}
}

func meetingTitle(m MeetingType) string {
	switch m {
	case MeetingVideo:
		return "Video"
	case MeetingInPerson:
		return "In-person"
	default:
		return "Phone"
	}
}

func meetingLabel(m MeetingType) string {
	switch m {
	case MeetingVideo:
		return "video"
	case MeetingInPerson:
		return "in-person"
	default:
		return "phone"
	}
}
