package scheduling

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrCalendarNotConnected means the tenant has no usable external calendar
// credential. It signals "no external data", never a booking failure.
var ErrCalendarNotConnected = errors.New("external calendar not connected")

const (
	DefaultSlotDurationMinutes = 30
	DefaultMaxSlots            = 10
	DefaultDaysAhead           = 7
	MaxDaysAhead               = 62
	// MaxDurationMinutes bounds a single appointment to one day.
	MaxDurationMinutes = 24 * 60
)

// Store is the full persistence surface used by the scheduling service.
type Store interface {
	TenantStore
	AvailabilityStore
	AppointmentStore
	OutboxStore
}

type Options struct {
	// MaxSlots caps listings for tenants without their own cap. 0 means uncapped.
	MaxSlots         int
	DefaultDaysAhead int
	CalendarTimeout  time.Duration
	StoreTimeout     time.Duration
	Now              func() time.Time
	NewID            func() string
}

func (o *Options) withDefaults() {
	if o.DefaultDaysAhead <= 0 {
		o.DefaultDaysAhead = DefaultDaysAhead
	}
	if o.CalendarTimeout <= 0 {
		o.CalendarTimeout = 10 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
}

// Service is the entry point shared by the web client, admins and the voice
// agent. It keeps no per-request state; concurrent calls are independent.
type Service struct {
	store    Store
	calendar CalendarGateway
	opts     Options
	tx       *Transactor
}

// NewService builds a Service. calendar may be nil, in which case scheduling is
// local-only.
func NewService(store Store, calendar CalendarGateway, opts Options) *Service {
	opts.withDefaults()
	s := &Service{store: store, calendar: calendar, opts: opts}
	s.tx = &Transactor{store: store, calendar: calendar, opts: opts}
	return s
}

// Availability is the outcome of a slot listing.
type Availability struct {
	Tenant     *Tenant
	Location   *time.Location
	RangeStart time.Time
	RangeEnd   time.Time
	Slots      []CandidateSlot
	HasRules   bool
	// CalendarConfigured reports whether a calendar gateway is wired at all.
	CalendarConfigured bool
	CalendarConnected  bool
	// CalendarDegraded is set when the external lookup failed and only local
	// appointments were considered.
	CalendarDegraded bool
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, storeErr("get tenant", err)
	}
	return t, nil
}

func (s *Service) SaveTenant(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if _, err := t.Location(); err != nil {
		return err
	}
	if t.SlotDurationMinutes == 0 {
		t.SlotDurationMinutes = DefaultSlotDurationMinutes
	}
	if t.SlotDurationMinutes < 0 || t.SlotDurationMinutes > MaxDurationMinutes {
		return &ValidationError{Field: "slot_duration_minutes", Reason: "must be between 1 and 1440"}
	}
	if t.BufferMinutes < 0 {
		return &ValidationError{Field: "buffer_minutes", Reason: "must not be negative"}
	}
	if t.MaxSlots < 0 {
		return &ValidationError{Field: "max_slots", Reason: "must not be negative"}
	}
	return storeErr("upsert tenant", s.store.UpsertTenant(ctx, t))
}

func (s *Service) ListAvailability(ctx context.Context, tenantID string) ([]AvailabilityRule, error) {
	rules, err := s.store.ListAvailabilityRules(ctx, tenantID)
	if err != nil {
		return nil, storeErr("list availability", err)
	}
	return rules, nil
}

// ReplaceAvailability swaps the tenant's whole rule set. An empty set is valid.
func (s *Service) ReplaceAvailability(ctx context.Context, tenantID string, rules []AvailabilityRule) ([]AvailabilityRule, error) {
	for i := range rules {
		if err := ValidateRule(rules[i]); err != nil {
			return nil, err
		}
		rules[i].TenantID = tenantID
	}
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	saved, err := s.store.ReplaceAvailabilityRules(ctx, tenantID, rules)
	if err != nil {
		return nil, storeErr("replace availability", err)
	}
	return saved, nil
}

// ListAvailableSlots generates candidates for [rangeStart, rangeStart+rangeDays)
// and removes those overlapping local appointments or external busy time.
// A zero rangeStart means now. A tenant without rules gets an empty result.
func (s *Service) ListAvailableSlots(ctx context.Context, tenantID string, rangeStart time.Time, rangeDays int) (*Availability, error) {
	if rangeDays < 0 || rangeDays > MaxDaysAhead {
		return nil, &ValidationError{Field: "days_ahead", Reason: "must be between 1 and 62"}
	}
	if rangeDays == 0 {
		rangeDays = s.opts.DefaultDaysAhead
	}
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	loc, err := tenant.Location()
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	if rangeStart.IsZero() {
		rangeStart = now
	}
	rs := rangeStart.In(loc)
	rangeEnd := time.Date(rs.Year(), rs.Month(), rs.Day()+rangeDays, 0, 0, 0, 0, loc)

	av := &Availability{Tenant: tenant, Location: loc, RangeStart: rs, RangeEnd: rangeEnd}

	rules, err := s.ListAvailability(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return av, nil
	}
	av.HasRules = true

	candidates := GenerateSlots(rules, loc, rs, rangeEnd, tenant.slotDuration(), tenant.BufferMinutes, now)
	if len(candidates) == 0 {
		return av, nil
	}
	spanStart, spanEnd := candidates[0].Start, candidates[len(candidates)-1].End

	var (
		local    []Appointment
		external FreeBusy
		extErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appts, err := s.store.ListScheduledOverlapping(gctx, tenantID, spanStart, spanEnd)
		if err != nil {
			return storeErr("list appointments", err)
		}
		local = appts
		return nil
	})
	if s.calendar != nil {
		g.Go(func() error {
			external, extErr = lookupBusy(gctx, s.calendar, s.opts.CalendarTimeout, tenantID, spanStart, spanEnd)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if extErr != nil {
		log.Printf("scheduling: calendar lookup degraded tenant=%s: %v", tenantID, extErr)
		av.CalendarDegraded = true
	}
	av.CalendarConfigured = s.calendar != nil
	av.CalendarConnected = external.Connected

	limit := tenant.MaxSlots
	if limit == 0 {
		limit = s.opts.MaxSlots
	}
	av.Slots = FilterFree(candidates, BusyFromAppointments(local), external.Busy, limit)
	return av, nil
}

// BookSlot reserves a slot through the Transactor.
func (s *Service) BookSlot(ctx context.Context, req BookingRequest) (*Appointment, error) {
	return s.tx.Book(ctx, req)
}

func (s *Service) ListAppointments(ctx context.Context, tenantID string, from, to time.Time) ([]Appointment, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, &ValidationError{Field: "from", Reason: "must be before to"}
	}
	appts, err := s.store.ListAppointments(ctx, tenantID, from, to)
	if err != nil {
		return nil, storeErr("list appointments", err)
	}
	return appts, nil
}

// CancelAppointment flips a scheduled appointment to canceled and retracts its
// external event. A failed retraction is queued for the reconciler.
func (s *Service) CancelAppointment(ctx context.Context, tenantID, appointmentID string) (*Appointment, error) {
	if _, err := uuid.Parse(appointmentID); err != nil {
		return nil, ErrNotFound
	}
	appt, err := s.store.TransitionStatus(ctx, tenantID, appointmentID, StatusCanceled)
	if err != nil {
		return nil, storeErr("cancel appointment", err)
	}
	if appt.ExternalEventRef == "" {
		return appt, nil
	}

	retractEvent(ctx, s.store, s.calendar, s.opts.CalendarTimeout, s.opts.NewID(), appt, s.opts.Now())
	return appt, nil
}

func (s *Service) CompleteAppointment(ctx context.Context, tenantID, appointmentID string) (*Appointment, error) {
	if _, err := uuid.Parse(appointmentID); err != nil {
		return nil, ErrNotFound
	}
	appt, err := s.store.TransitionStatus(ctx, tenantID, appointmentID, StatusCompleted)
	if err != nil {
		return nil, storeErr("complete appointment", err)
	}
	return appt, nil
}

// lookupBusy queries the external calendar with a bounded timeout. A tenant
// without a connected calendar yields an empty, disconnected result.
func lookupBusy(ctx context.Context, cal CalendarGateway, timeout time.Duration, tenantID string, from, to time.Time) (FreeBusy, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	fb, err := cal.QueryBusy(cctx, tenantID, from, to)
	if errors.Is(err, ErrCalendarNotConnected) {
		return FreeBusy{}, nil
	}
	return fb, err
}

func (t *Tenant) slotDuration() int {
	if t.SlotDurationMinutes > 0 {
		return t.SlotDurationMinutes
	}
	return DefaultSlotDurationMinutes
}

// ListAvailableSlotsOn lists slots starting at the tenant-local date
// (YYYY-MM-DD). An empty date starts now.
func (s *Service) ListAvailableSlotsOn(ctx context.Context, tenantID, date string, days int) (*Availability, error) {
	if date == "" {
		return s.ListAvailableSlots(ctx, tenantID, time.Time{}, days)
	}
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	loc, err := tenant.Location()
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return s.ListAvailableSlots(ctx, tenantID, day, days)
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

// ResolveDateTime parses an ISO8601 timestamp. Values without an offset are
// wall-clock times in the tenant's timezone. The tenant location is returned
// for presenting results.
func (s *Service) ResolveDateTime(ctx context.Context, tenantID, value string) (time.Time, *time.Location, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return time.Time{}, nil, err
	}
	loc, err := tenant.Location()
	if err != nil {
		return time.Time{}, nil, err
	}
	if value == "" {
		return time.Time{}, loc, &ValidationError{Field: "datetime", Reason: "is required"}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, loc, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, loc, nil
		}
	}
	return time.Time{}, loc, &ValidationError{Field: "datetime", Reason: "must be an ISO8601 timestamp"}
}
