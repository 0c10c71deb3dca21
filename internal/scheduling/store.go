package scheduling

import (
	"context"
	"time"
)

type TenantStore interface {
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
	UpsertTenant(ctx context.Context, t *Tenant) error
}

type AvailabilityStore interface {
	ListAvailabilityRules(ctx context.Context, tenantID string) ([]AvailabilityRule, error)
	// ReplaceAvailabilityRules deletes every rule for the tenant and inserts rules
	// in a single transaction.
	ReplaceAvailabilityRules(ctx context.Context, tenantID string, rules []AvailabilityRule) ([]AvailabilityRule, error)
}

type AppointmentStore interface {
	// InsertAppointment must reject an appointment overlapping another scheduled
	// appointment of the same tenant with ErrConflict. The check is atomic with
	// the write.
	InsertAppointment(ctx context.Context, a *Appointment, outbox *OutboxEntry) error
	GetAppointment(ctx context.Context, tenantID, id string) (*Appointment, error)
	// ListScheduledOverlapping returns scheduled appointments intersecting [from, to).
	ListScheduledOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]Appointment, error)
	ListAppointments(ctx context.Context, tenantID string, from, to time.Time) ([]Appointment, error)
	// TransitionStatus moves a scheduled appointment to status. It returns
	// ErrConflict when the appointment is no longer scheduled.
	TransitionStatus(ctx context.Context, tenantID, id string, status AppointmentStatus) (*Appointment, error)
	// SetExternalEvent records the event of a scheduled appointment, returning
	// ErrConflict once it has left the scheduled state.
	SetExternalEvent(ctx context.Context, tenantID, id, eventRef string) error
}

type OutboxStore interface {
	EnqueueOutbox(ctx context.Context, e *OutboxEntry) error
	// ClaimDueOutbox returns up to limit entries with next_attempt_at <= now and
	// pushes their next_attempt_at forward by lease so concurrent reconcilers skip them.
	ClaimDueOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]OutboxEntry, error)
	CompleteOutbox(ctx context.Context, id string) error
	RetryOutbox(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	AbandonOutbox(ctx context.Context, id string, lastErr string) error
}

// CalendarGateway is the external calendar of a tenant. QueryBusy reports
// Connected=false with a nil error when the tenant has no usable credential.
type CalendarGateway interface {
	QueryBusy(ctx context.Context, tenantID string, from, to time.Time) (FreeBusy, error)
	CreateEvent(ctx context.Context, tenantID string, ev EventRequest) (string, error)
	DeleteEvent(ctx context.Context, tenantID, eventRef string) error
}
