package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-service/internal/scheduling"
)

func TestMapError(t *testing.T) {
	plain := errors.New("connection reset")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, scheduling.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), scheduling.ErrNotFound},
		{"exclusion", &pgconn.PgError{Code: codeExclusionViolation, ConstraintName: "appointments_no_overlap"}, scheduling.ErrConflict},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, scheduling.ErrConflict},
		{"invalid uuid", &pgconn.PgError{Code: codeInvalidText}, scheduling.ErrNotFound},
		{"other", plain, plain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMapError_OtherPgErrorPassesThrough(t *testing.T) {
	in := &pgconn.PgError{Code: "53300", Message: "too many connections"}
	got := mapError(in)
	if errors.Is(got, scheduling.ErrConflict) || errors.Is(got, scheduling.ErrNotFound) {
		t.Fatalf("unexpected mapping %v", got)
	}
	var pgErr *pgconn.PgError
	if !errors.As(got, &pgErr) || pgErr.Code != "53300" {
		t.Fatalf("driver error lost: %v", got)
	}
}

// testStore connects to BOOKING_TEST_DATABASE_URL, skipping when unset.
func testStore(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("BOOKING_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BOOKING_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	p := New(pool)
	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return p
}

func newTenant(t *testing.T, p *Postgres) string {
	t.Helper()
	id := "t-" + uuid.NewString()[:8]
	if err := p.UpsertTenant(context.Background(), &scheduling.Tenant{ID: id, Name: "Test", Timezone: "UTC", SlotDurationMinutes: 30}); err != nil {
		t.Fatalf("UpsertTenant: %v", err)
	}
	return id
}

func appointmentAt(tenantID string, start time.Time, minutes int) *scheduling.Appointment {
	return &scheduling.Appointment{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		StartAt:         start,
		DurationMinutes: minutes,
		Type:            scheduling.MeetingPhone,
		Status:          scheduling.StatusScheduled,
		Attribution:     scheduling.Attribution{BookedBy: scheduling.BookedByClient, CallerName: "Test"},
		CalendarSync:    scheduling.SyncNone,
	}
}

func TestPostgres_NoOverlap(t *testing.T) {
	p := testStore(t)
	ctx := context.Background()
	tenant := newTenant(t, p)
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour).UTC()

	if err := p.InsertAppointment(ctx, appointmentAt(tenant, start, 30), nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := p.InsertAppointment(ctx, appointmentAt(tenant, start.Add(15*time.Minute), 30), nil)
	if !errors.Is(err, scheduling.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := p.InsertAppointment(ctx, appointmentAt(tenant, start.Add(30*time.Minute), 30), nil); err != nil {
		t.Fatalf("adjacent insert should succeed: %v", err)
	}
	// Another tenant is unaffected.
	if err := p.InsertAppointment(ctx, appointmentAt(newTenant(t, p), start, 30), nil); err != nil {
		t.Fatalf("other tenant insert: %v", err)
	}
}

func TestPostgres_ConcurrentInserts(t *testing.T) {
	p := testStore(t)
	ctx := context.Background()
	tenant := newTenant(t, p)
	start := time.Now().Add(72 * time.Hour).Truncate(time.Hour).UTC()

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.InsertAppointment(ctx, appointmentAt(tenant, start, 30), nil)
			if err != nil && !errors.Is(err, scheduling.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
}

func TestPostgres_CancelFreesInterval(t *testing.T) {
	p := testStore(t)
	ctx := context.Background()
	tenant := newTenant(t, p)
	start := time.Now().Add(96 * time.Hour).Truncate(time.Hour).UTC()
	a := appointmentAt(tenant, start, 60)
	if err := p.InsertAppointment(ctx, a, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := p.TransitionStatus(ctx, tenant, a.ID, scheduling.StatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := p.TransitionStatus(ctx, tenant, a.ID, scheduling.StatusCanceled); !errors.Is(err, scheduling.ErrConflict) {
		t.Fatalf("second cancel: expected ErrConflict, got %v", err)
	}
	if _, err := p.TransitionStatus(ctx, tenant, uuid.NewString(), scheduling.StatusCanceled); !errors.Is(err, scheduling.ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}
	if err := p.InsertAppointment(ctx, appointmentAt(tenant, start, 60), nil); err != nil {
		t.Fatalf("rebooking canceled interval: %v", err)
	}
}

func TestPostgres_SetExternalEventRequiresScheduled(t *testing.T) {
	p := testStore(t)
	ctx := context.Background()
	tenant := newTenant(t, p)
	a := appointmentAt(tenant, time.Now().Add(144*time.Hour).Truncate(time.Hour).UTC(), 30)
	if err := p.InsertAppointment(ctx, a, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := p.TransitionStatus(ctx, tenant, a.ID, scheduling.StatusCanceled); err != nil {
		t.Fatal(err)
	}

	if err := p.SetExternalEvent(ctx, tenant, a.ID, "evt-1"); !errors.Is(err, scheduling.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := p.SetExternalEvent(ctx, tenant, uuid.NewString(), "evt-1"); !errors.Is(err, scheduling.ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}
	stored, err := p.GetAppointment(ctx, tenant, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ExternalEventRef != "" {
		t.Fatalf("canceled appointment gained event %q", stored.ExternalEventRef)
	}
}

func TestPostgres_Outbox(t *testing.T) {
	p := testStore(t)
	ctx := context.Background()
	tenant := newTenant(t, p)
	now := time.Now().UTC().Truncate(time.Second)
	a := appointmentAt(tenant, now.Add(120*time.Hour).Truncate(time.Hour), 30)
	a.CalendarSync = scheduling.SyncPending
	entry := &scheduling.OutboxEntry{
		ID:            uuid.NewString(),
		TenantID:      tenant,
		AppointmentID: a.ID,
		Action:        scheduling.OutboxCreateEvent,
		NextAttemptAt: now.Add(-time.Second),
	}
	if err := p.InsertAppointment(ctx, a, entry); err != nil {
		t.Fatalf("insert with outbox: %v", err)
	}

	claimed, err := p.ClaimDueOutbox(ctx, now, 5*time.Minute, 100)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	found := false
	for _, e := range claimed {
		if e.ID == entry.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("due entry was not claimed")
	}
	// Leased entries are invisible until the lease runs out.
	again, err := p.ClaimDueOutbox(ctx, now, 5*time.Minute, 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range again {
		if e.ID == entry.ID {
			t.Fatal("leased entry claimed twice")
		}
	}

	if err := p.SetExternalEvent(ctx, tenant, a.ID, "evt-1"); err != nil {
		t.Fatalf("SetExternalEvent: %v", err)
	}
	if err := p.CompleteOutbox(ctx, entry.ID); err != nil {
		t.Fatalf("CompleteOutbox: %v", err)
	}
	got, err := p.GetAppointment(ctx, tenant, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExternalEventRef != "evt-1" || got.CalendarSync != scheduling.SyncSynced {
		t.Fatalf("unexpected appointment %+v", got)
	}
}
