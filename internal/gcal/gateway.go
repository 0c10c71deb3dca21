package gcal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"booking-service/internal/scheduling"
)

const (
	// DefaultRefreshAfter assumes a 60 minute access-token lifetime.
	DefaultRefreshAfter = 50 * time.Minute
	refreshLockTTL      = 30 * time.Second
	refreshTimeout      = 15 * time.Second
)

type Options struct {
	RefreshAfter time.Duration
	// Endpoint overrides the Calendar API base URL.
	Endpoint string
	Locker   Locker
	Now      func() time.Time
}

// Gateway talks to one Google calendar per tenant and keeps its access token
// fresh. It implements scheduling.CalendarGateway.
type Gateway struct {
	oauth        *oauth2.Config
	creds        CredentialStore
	locker       Locker
	endpoint     string
	refreshAfter time.Duration
	now          func() time.Time
	refreshes    singleflight.Group
}

var _ scheduling.CalendarGateway = (*Gateway)(nil)

func NewGateway(oauth *oauth2.Config, creds CredentialStore, opts Options) *Gateway {
	g := &Gateway{
		oauth:        oauth,
		creds:        creds,
		locker:       opts.Locker,
		endpoint:     opts.Endpoint,
		refreshAfter: opts.RefreshAfter,
		now:          opts.Now,
	}
	if g.refreshAfter <= 0 {
		g.refreshAfter = DefaultRefreshAfter
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// ValidCredential returns the tenant's credential, refreshing the access token
// first when it is older than the refresh threshold. A rejected refresh grant
// disconnects the tenant and yields ErrNotConnected.
func (g *Gateway) ValidCredential(ctx context.Context, tenantID string) (*Credential, error) {
	cred, err := g.loadConnected(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !g.stale(cred) {
		return cred, nil
	}

	// One refresh per tenant at a time in this process; waiters share the result.
	ch := g.refreshes.DoChan(tenantID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return g.refresh(rctx, tenantID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	}
}

func (g *Gateway) loadConnected(ctx context.Context, tenantID string) (*Credential, error) {
	cred, err := g.creds.GetCredential(ctx, tenantID)
	if errors.Is(err, scheduling.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred.Status != StatusConnected || cred.RefreshToken == "" {
		return nil, ErrNotConnected
	}
	return cred, nil
}

func (g *Gateway) stale(c *Credential) bool {
	return c.AccessToken == "" || g.now().Sub(c.LastRefreshedAt) > g.refreshAfter
}

func (g *Gateway) refresh(ctx context.Context, tenantID string) (*Credential, error) {
	if g.oauth == nil {
		return nil, ErrNotConnected
	}
	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, "calendar:refresh:"+tenantID, refreshLockTTL)
		if err != nil {
			return nil, fmt.Errorf("refresh lock: %w", err)
		}
		defer unlock()
	}

	// Another process may have refreshed while we waited for the lock.
	cred, err := g.loadConnected(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !g.stale(cred) {
		return cred, nil
	}

	tok, err := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		if grantRejected(err) {
			log.Printf("gcal: refresh grant rejected, disconnecting tenant=%s: %v", tenantID, err)
			if serr := g.creds.SetCredentialStatus(ctx, tenantID, StatusDisconnected); serr != nil {
				log.Printf("gcal: mark disconnected tenant=%s: %v", tenantID, serr)
			}
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.LastRefreshedAt = g.now()
	err = g.creds.SaveRefreshedToken(ctx, cred)
	if errors.Is(err, scheduling.ErrNotFound) {
		// Disconnected while the refresh was in flight.
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	return cred, nil
}

func grantRejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.ErrorCode == "invalid_grant" || re.ErrorCode == "unauthorized_client" {
		return true
	}
	return re.Response != nil &&
		(re.Response.StatusCode == http.StatusBadRequest || re.Response.StatusCode == http.StatusUnauthorized)
}

func (g *Gateway) service(ctx context.Context, cred *Credential) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return srv, nil
}

// QueryBusy returns busy blocks in [from, to). A tenant without a connected
// calendar gets an empty, disconnected result rather than an error.
func (g *Gateway) QueryBusy(ctx context.Context, tenantID string, from, to time.Time) (scheduling.FreeBusy, error) {
	cred, err := g.ValidCredential(ctx, tenantID)
	if errors.Is(err, ErrNotConnected) {
		return scheduling.FreeBusy{}, nil
	}
	if err != nil {
		return scheduling.FreeBusy{}, err
	}
	srv, err := g.service(ctx, cred)
	if err != nil {
		return scheduling.FreeBusy{}, err
	}

	resp, err := srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: cred.CalendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return scheduling.FreeBusy{}, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[cred.CalendarID]
	if !ok {
		return scheduling.FreeBusy{}, fmt.Errorf("freebusy: calendar %q missing from response", cred.CalendarID)
	}
	if len(cal.Errors) > 0 {
		return scheduling.FreeBusy{}, fmt.Errorf("freebusy: %s", cal.Errors[0].Reason)
	}

	busy := make([]scheduling.BusyPeriod, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return scheduling.FreeBusy{}, fmt.Errorf("freebusy: bad start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return scheduling.FreeBusy{}, fmt.Errorf("freebusy: bad end %q: %w", p.End, err)
		}
		busy = append(busy, scheduling.BusyPeriod{Start: start, End: end, Source: scheduling.BusySourceExternal})
	}
	return scheduling.FreeBusy{Connected: true, Busy: busy}, nil
}

func (g *Gateway) CreateEvent(ctx context.Context, tenantID string, req scheduling.EventRequest) (string, error) {
	cred, err := g.ValidCredential(ctx, tenantID)
	if err != nil {
		return "", err
	}
	srv, err := g.service(ctx, cred)
	if err != nil {
		return "", err
	}

	ev := &calendar.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: req.Timezone},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: req.Timezone},
	}
	if req.AttendeeEmail != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: req.AttendeeEmail}}
	}

	created, err := srv.Events.Insert(cred.CalendarID, ev).SendUpdates("none").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes an event. An event that is already gone counts as deleted.
func (g *Gateway) DeleteEvent(ctx context.Context, tenantID, eventRef string) error {
	cred, err := g.ValidCredential(ctx, tenantID)
	if err != nil {
		return err
	}
	srv, err := g.service(ctx, cred)
	if err != nil {
		return err
	}
	err = srv.Events.Delete(cred.CalendarID, eventRef).SendUpdates("none").Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
