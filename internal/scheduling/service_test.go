package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-service/internal/scheduling"
	"booking-service/internal/scheduling/schedulingtest"
)

const tenantID = "acme"

type fixture struct {
	svc   *scheduling.Service
	store *schedulingtest.MemStore
	cal   *schedulingtest.FakeCalendar
	now   time.Time
}

// newFixture builds a UTC tenant open Mondays 09:00-17:00 with 30 minute slots.
// "Now" is Monday 08:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: schedulingtest.NewMemStore(),
		cal:   schedulingtest.NewFakeCalendar(),
		now:   at(monday, 8, 0),
	}
	f.svc = scheduling.NewService(f.store, f.cal, scheduling.Options{
		Now: func() time.Time { return f.now },
	})
	ctx := context.Background()
	if err := f.svc.SaveTenant(ctx, &scheduling.Tenant{ID: tenantID, Name: "Acme", Timezone: "UTC"}); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	if _, err := f.svc.ReplaceAvailability(ctx, tenantID, []scheduling.AvailabilityRule{mondayRule("09:00", "17:00")}); err != nil {
		t.Fatalf("ReplaceAvailability: %v", err)
	}
	return f
}

func (f *fixture) list(t *testing.T) *scheduling.Availability {
	t.Helper()
	av, err := f.svc.ListAvailableSlots(context.Background(), tenantID, time.Time{}, 1)
	if err != nil {
		t.Fatalf("ListAvailableSlots: %v", err)
	}
	return av
}

func TestListAvailableSlots_NoRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.ReplaceAvailability(ctx, tenantID, nil); err != nil {
		t.Fatalf("ReplaceAvailability: %v", err)
	}

	for _, days := range []int{1, 7, 30} {
		av, err := f.svc.ListAvailableSlots(ctx, tenantID, time.Time{}, days)
		if err != nil {
			t.Fatalf("days=%d: %v", days, err)
		}
		if av.HasRules || len(av.Slots) != 0 {
			t.Fatalf("days=%d: expected empty listing, got %d slots", days, len(av.Slots))
		}
		if got := scheduling.DescribeAvailability(av); got != scheduling.NarrationNotConfigured {
			t.Fatalf("unexpected narration %q", got)
		}
	}
	if q, _, _ := f.cal.Calls(); q != 0 {
		t.Fatalf("calendar should not be queried without rules, got %d calls", q)
	}
}

func TestListAvailableSlots_UnknownTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListAvailableSlots(context.Background(), "nobody", time.Time{}, 1)
	if !errors.Is(err, scheduling.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAvailableSlots_MergesBothSources(t *testing.T) {
	f := newFixture(t)
	f.cal.Busy = []scheduling.BusyPeriod{{Start: at(monday, 14, 0), End: at(monday, 15, 0), Source: scheduling.BusySourceExternal}}
	if _, err := f.svc.BookSlot(context.Background(), scheduling.BookingRequest{
		TenantID: tenantID, Start: at(monday, 10, 0), Type: scheduling.MeetingPhone,
	}); err != nil {
		t.Fatalf("BookSlot: %v", err)
	}

	av := f.list(t)

	if !av.CalendarConnected || av.CalendarDegraded {
		t.Fatalf("expected a connected, healthy calendar: %+v", av)
	}
	for _, ts := range []time.Time{at(monday, 10, 0), at(monday, 14, 0), at(monday, 14, 30)} {
		if hasStart(av.Slots, ts) {
			t.Fatalf("%s should not be offered", ts.Format("15:04"))
		}
	}
	for _, ts := range []time.Time{at(monday, 9, 30), at(monday, 10, 30), at(monday, 15, 0)} {
		if !hasStart(av.Slots, ts) {
			t.Fatalf("%s should be offered", ts.Format("15:04"))
		}
	}
}

func TestListAvailableSlots_Stable(t *testing.T) {
	f := newFixture(t)

	first := f.list(t)
	second := f.list(t)

	if len(first.Slots) != len(second.Slots) {
		t.Fatalf("listing changed: %d vs %d slots", len(first.Slots), len(second.Slots))
	}
	for i := range first.Slots {
		if !first.Slots[i].Start.Equal(second.Slots[i].Start) {
			t.Fatalf("slot %d differs", i)
		}
	}
}

func TestListAvailableSlots_CalendarDisconnected(t *testing.T) {
	f := newFixture(t)
	f.cal.Connected = false
	f.cal.Busy = []scheduling.BusyPeriod{{Start: at(monday, 9, 0), End: at(monday, 17, 0)}}

	av := f.list(t)

	if av.CalendarConnected || av.CalendarDegraded {
		t.Fatalf("expected disconnected without degradation: %+v", av)
	}
	if len(av.Slots) != 16 {
		t.Fatalf("expected local-only listing of 16 slots, got %d", len(av.Slots))
	}
}

func TestListAvailableSlots_CalendarErrorDegrades(t *testing.T) {
	f := newFixture(t)
	f.cal.QueryErr = errors.New("upstream timeout")

	av := f.list(t)

	if !av.CalendarDegraded {
		t.Fatal("expected degraded listing")
	}
	if len(av.Slots) != 16 {
		t.Fatalf("expected local-only listing of 16 slots, got %d", len(av.Slots))
	}
}

func TestListAvailableSlots_NoCalendarConfigured(t *testing.T) {
	store := schedulingtest.NewMemStore()
	svc := scheduling.NewService(store, nil, scheduling.Options{Now: func() time.Time { return at(monday, 8, 0) }})
	ctx := context.Background()
	if err := svc.SaveTenant(ctx, &scheduling.Tenant{ID: tenantID, Timezone: "UTC"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReplaceAvailability(ctx, tenantID, []scheduling.AvailabilityRule{mondayRule("09:00", "10:00")}); err != nil {
		t.Fatal(err)
	}

	av, err := svc.ListAvailableSlots(ctx, tenantID, time.Time{}, 1)
	if err != nil {
		t.Fatalf("ListAvailableSlots: %v", err)
	}
	if len(av.Slots) != 2 || av.CalendarConnected || av.CalendarConfigured {
		t.Fatalf("expected 2 local-only slots, got %+v", av)
	}
}

func TestListAvailableSlots_DisconnectedAndFullyBooked(t *testing.T) {
	f := newFixture(t)
	f.cal.Connected = false
	ctx := context.Background()
	if _, err := f.svc.ReplaceAvailability(ctx, tenantID, []scheduling.AvailabilityRule{mondayRule("09:00", "10:00")}); err != nil {
		t.Fatal(err)
	}
	for _, m := range []int{0, 30} {
		if _, err := f.svc.BookSlot(ctx, bookingAt(at(monday, 9, m))); err != nil {
			t.Fatalf("BookSlot: %v", err)
		}
	}

	av := f.list(t)

	if len(av.Slots) != 0 || !av.CalendarConfigured || av.CalendarConnected {
		t.Fatalf("expected an empty disconnected listing, got %+v", av)
	}
	if got := scheduling.DescribeAvailability(av); got != scheduling.NarrationNoCalendar {
		t.Fatalf("unexpected narration %q", got)
	}
}

func TestListAvailableSlots_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("connection refused")

	_, err := f.svc.ListAvailableSlots(context.Background(), tenantID, time.Time{}, 1)
	if !scheduling.IsStoreFailure(err) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

func TestListAvailableSlots_Caps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.SaveTenant(ctx, &scheduling.Tenant{ID: tenantID, Timezone: "UTC", MaxSlots: 10}); err != nil {
		t.Fatal(err)
	}

	av := f.list(t)

	if len(av.Slots) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(av.Slots))
	}
}

func TestListAvailableSlots_InvalidDays(t *testing.T) {
	f := newFixture(t)
	for _, days := range []int{-1, scheduling.MaxDaysAhead + 1} {
		_, err := f.svc.ListAvailableSlots(context.Background(), tenantID, time.Time{}, days)
		if !scheduling.IsValidation(err) {
			t.Fatalf("days=%d: expected validation error, got %v", days, err)
		}
	}
}

func TestListAvailableSlotsOn_Date(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	av, err := f.svc.ListAvailableSlotsOn(ctx, tenantID, "2025-10-27", 1)
	if err != nil {
		t.Fatalf("ListAvailableSlotsOn: %v", err)
	}
	want := time.Date(2025, 10, 27, 9, 0, 0, 0, time.UTC)
	if len(av.Slots) != 16 || !av.Slots[0].Start.Equal(want) {
		t.Fatalf("expected 16 slots from %s, got %d", want, len(av.Slots))
	}

	if _, err := f.svc.ListAvailableSlotsOn(ctx, tenantID, "27/10/2025", 1); !scheduling.IsValidation(err) {
		t.Fatalf("expected validation error for bad date, got %v", err)
	}
}

func TestResolveDateTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.SaveTenant(ctx, &scheduling.Tenant{ID: "ny", Timezone: "America/New_York"}); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	got, loc, err := f.svc.ResolveDateTime(ctx, "ny", "2025-10-20T09:00:00")
	if err != nil {
		t.Fatalf("ResolveDateTime: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Fatalf("unexpected location %s", loc)
	}
	if want := time.Date(2025, 10, 20, 13, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("wall-clock value: expected %s, got %s", want, got.UTC())
	}

	got, _, err = f.svc.ResolveDateTime(ctx, "ny", "2025-10-20T09:00:00Z")
	if err != nil {
		t.Fatalf("ResolveDateTime: %v", err)
	}
	if want := time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("explicit offset: expected %s, got %s", want, got.UTC())
	}

	if _, _, err := f.svc.ResolveDateTime(ctx, "ny", "tomorrow at nine"); !scheduling.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveTenant_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []*scheduling.Tenant{
		{ID: "", Timezone: "UTC"},
		{ID: "x", Timezone: "Mars/Olympus"},
		{ID: "x", Timezone: "UTC", SlotDurationMinutes: -5},
		{ID: "x", Timezone: "UTC", BufferMinutes: -1},
	}
	for _, tc := range cases {
		if err := f.svc.SaveTenant(ctx, tc); !scheduling.IsValidation(err) {
			t.Fatalf("%+v: expected validation error, got %v", tc, err)
		}
	}

	tenant := &scheduling.Tenant{ID: "x", Timezone: "UTC"}
	if err := f.svc.SaveTenant(ctx, tenant); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	if tenant.SlotDurationMinutes != scheduling.DefaultSlotDurationMinutes {
		t.Fatalf("expected default duration, got %d", tenant.SlotDurationMinutes)
	}
}

func TestReplaceAvailability_RejectsInvalidRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReplaceAvailability(ctx, tenantID, []scheduling.AvailabilityRule{
		mondayRule("09:00", "12:00"),
		mondayRule("15:00", "13:00"),
	})
	if !scheduling.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	rules, err := f.svc.ListAvailability(ctx, tenantID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].StartTime != "09:00" || rules[0].EndTime != "17:00" {
		t.Fatalf("previous rule set should be untouched, got %+v", rules)
	}
}
