package gcal

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"booking-service/internal/scheduling"
)

// ErrNotConnected is returned when the tenant has no usable credential.
var ErrNotConnected = scheduling.ErrCalendarNotConnected

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

const DefaultCalendarID = "primary"

// Credential is the stored OAuth grant for a tenant's external calendar.
type Credential struct {
	TenantID        string           `json:"tenant_id"`
	AccessToken     string           `json:"-"`
	RefreshToken    string           `json:"-"`
	CalendarID      string           `json:"calendar_id"`
	LastRefreshedAt time.Time        `json:"last_refreshed_at"`
	Status          ConnectionStatus `json:"status"`
	UpdatedAt       time.Time        `json:"updated_at,omitempty"`
}

type CredentialStore interface {
	// GetCredential returns scheduling.ErrNotFound when the tenant never connected.
	GetCredential(ctx context.Context, tenantID string) (*Credential, error)
	SaveCredential(ctx context.Context, c *Credential) error
	// SaveRefreshedToken stores a refreshed token pair only while the tenant is
	// still connected, returning scheduling.ErrNotFound otherwise.
	SaveRefreshedToken(ctx context.Context, c *Credential) error
	SetCredentialStatus(ctx context.Context, tenantID string, status ConnectionStatus) error
}

// Locker serializes credential refresh across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// NewOAuthConfig returns nil when the client is not configured.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			calendar.CalendarReadonlyScope,
			calendar.CalendarEventsScope,
		},
		Endpoint: google.Endpoint,
	}
}
