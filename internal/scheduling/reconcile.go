package scheduling

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	defaultOutboxBatch       = 20
	defaultOutboxMaxAttempts = 10
	outboxLease              = 5 * time.Minute
	maxOutboxBackoff         = time.Hour
)

// Reconciler drains the calendar outbox: event creations that failed at
// booking time and event retractions that failed at cancel time.
type Reconciler struct {
	store       Store
	calendar    CalendarGateway
	timeout     time.Duration
	maxAttempts int
	batch       int
	now         func() time.Time
}

type ReconcilerOptions struct {
	MaxAttempts     int
	Batch           int
	CalendarTimeout time.Duration
	Now             func() time.Time
}

func NewReconciler(store Store, calendar CalendarGateway, opts ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		store:       store,
		calendar:    calendar,
		timeout:     opts.CalendarTimeout,
		maxAttempts: opts.MaxAttempts,
		batch:       opts.Batch,
		now:         opts.Now,
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultOutboxMaxAttempts
	}
	if r.batch <= 0 {
		r.batch = defaultOutboxBatch
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunOnce processes one batch of due entries and returns how many completed.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	entries, err := r.store.ClaimDueOutbox(ctx, r.now(), outboxLease, r.batch)
	if err != nil {
		return 0, storeErr("claim outbox", err)
	}
	done := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		var runErr error
		switch e.Action {
		case OutboxCreateEvent:
			runErr = r.create(ctx, e)
		case OutboxDeleteEvent:
			runErr = r.delete(ctx, e)
		default:
			log.Printf("reconcile: unknown outbox action %q id=%s", e.Action, e.ID)
			if err := r.store.AbandonOutbox(ctx, e.ID, "unknown action"); err != nil {
				return done, storeErr("abandon outbox", err)
			}
			continue
		}
		if runErr == nil {
			if err := r.store.CompleteOutbox(ctx, e.ID); err != nil {
				return done, storeErr("complete outbox", err)
			}
			done++
			continue
		}
		if err := r.fail(ctx, e, runErr); err != nil {
			return done, err
		}
	}
	return done, nil
}

func (r *Reconciler) create(ctx context.Context, e OutboxEntry) error {
	appt, err := r.store.GetAppointment(ctx, e.TenantID, e.AppointmentID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	// Canceled before the event ever landed, or already synced.
	if appt.Status != StatusScheduled || appt.ExternalEventRef != "" {
		return nil
	}
	if r.calendar == nil {
		return ErrCalendarNotConnected
	}
	tenant, err := r.store.GetTenant(ctx, e.TenantID)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	ref, err := r.calendar.CreateEvent(cctx, e.TenantID, EventFor(tenant, appt))
	cancel()
	if err != nil {
		return err
	}
	err = r.store.SetExternalEvent(ctx, e.TenantID, e.AppointmentID, ref)
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		// Canceled while the event was being created.
		appt.ExternalEventRef = ref
		retractEvent(ctx, r.store, r.calendar, r.timeout, uuid.NewString(), appt, r.now())
		return nil
	}
	return err
}

func (r *Reconciler) delete(ctx context.Context, e OutboxEntry) error {
	if e.EventRef == "" {
		return nil
	}
	if r.calendar == nil {
		return ErrCalendarNotConnected
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.calendar.DeleteEvent(cctx, e.TenantID, e.EventRef)
}

func (r *Reconciler) fail(ctx context.Context, e OutboxEntry, cause error) error {
	attempts := e.Attempts + 1
	if attempts >= r.maxAttempts {
		log.Printf("reconcile: giving up %s tenant=%s appointment=%s after %d attempts: %v",
			e.Action, e.TenantID, e.AppointmentID, attempts, cause)
		return storeErr("abandon outbox", r.store.AbandonOutbox(ctx, e.ID, cause.Error()))
	}
	next := r.now().Add(OutboxBackoff(attempts))
	log.Printf("reconcile: retry %s tenant=%s appointment=%s attempt=%d next=%s: %v",
		e.Action, e.TenantID, e.AppointmentID, attempts, next.Format(time.RFC3339), cause)
	return storeErr("retry outbox", r.store.RetryOutbox(ctx, e.ID, attempts, next, cause.Error()))
}

// OutboxBackoff is 1m * 2^(attempts-1), capped at one hour.
func OutboxBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := time.Minute
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxOutboxBackoff {
			return maxOutboxBackoff
		}
	}
	return d
}
