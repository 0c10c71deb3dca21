package app

import (
	"context"
	"time"

	"booking-service/internal/scheduling"
)

// Scheduler is the scheduling surface the handlers depend on.
type Scheduler interface {
	GetTenant(ctx context.Context, tenantID string) (*scheduling.Tenant, error)
	SaveTenant(ctx context.Context, t *scheduling.Tenant) error
	ListAvailability(ctx context.Context, tenantID string) ([]scheduling.AvailabilityRule, error)
	ReplaceAvailability(ctx context.Context, tenantID string, rules []scheduling.AvailabilityRule) ([]scheduling.AvailabilityRule, error)
	ListAvailableSlotsOn(ctx context.Context, tenantID, date string, days int) (*scheduling.Availability, error)
	ResolveDateTime(ctx context.Context, tenantID, value string) (time.Time, *time.Location, error)
	BookSlot(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
	ListAppointments(ctx context.Context, tenantID string, from, to time.Time) ([]scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, tenantID, appointmentID string) (*scheduling.Appointment, error)
	CompleteAppointment(ctx context.Context, tenantID, appointmentID string) (*scheduling.Appointment, error)
}

var _ Scheduler = (*scheduling.Service)(nil)
