package gcal

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrNotConfigured means no OAuth client was configured for the process.
var ErrNotConfigured = errors.New("google calendar not configured")

func (g *Gateway) Configured() bool { return g.oauth != nil }

// AuthURL is the consent page the tenant admin is sent to. Offline access with
// a forced consent prompt guarantees a refresh token in the callback.
func (g *Gateway) AuthURL(state string) (string, error) {
	if g.oauth == nil {
		return "", ErrNotConfigured
	}
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Connect exchanges an authorization code and stores the tenant's credential.
func (g *Gateway) Connect(ctx context.Context, tenantID, code, calendarID string) (*Credential, error) {
	if g.oauth == nil {
		return nil, ErrNotConfigured
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("authorization did not grant offline access")
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	cred := &Credential{
		TenantID:        tenantID,
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		CalendarID:      calendarID,
		LastRefreshedAt: g.now(),
		Status:          StatusConnected,
	}
	if err := g.creds.SaveCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	return cred, nil
}

func (g *Gateway) Disconnect(ctx context.Context, tenantID string) error {
	return g.creds.SetCredentialStatus(ctx, tenantID, StatusDisconnected)
}

// Status reports the stored connection state without refreshing.
func (g *Gateway) Status(ctx context.Context, tenantID string) (*Credential, error) {
	cred, err := g.creds.GetCredential(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return cred, nil
}
