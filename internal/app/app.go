package app

import (
	"context"
	"time"

	"booking-service/internal/cache"
	"booking-service/internal/gcal"
)

// CalendarConnector manages a tenant's external calendar connection.
type CalendarConnector interface {
	Configured() bool
	AuthURL(state string) (string, error)
	Connect(ctx context.Context, tenantID, code, calendarID string) (*gcal.Credential, error)
	Disconnect(ctx context.Context, tenantID string) error
	Status(ctx context.Context, tenantID string) (*gcal.Credential, error)
}

// ReplayCache stores completed responses by idempotency key.
type ReplayCache interface {
	Get(ctx context.Context, key string) (*cache.Response, bool, error)
	Put(ctx context.Context, key string, r *cache.Response) error
}

type App struct {
	Scheduling Scheduler
	// Calendar is nil when no OAuth client is configured.
	Calendar CalendarConnector
	// Replay is nil when redis is not configured.
	Replay      ReplayCache
	StateSecret []byte
	Now         func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
