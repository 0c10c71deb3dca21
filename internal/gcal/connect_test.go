package gcal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"booking-service/internal/scheduling"
)

func TestAuthURL(t *testing.T) {
	g := newTestGateway(testOAuth("http://127.0.0.1:0/token"), newMemCreds(), "", nil)

	raw, err := g.AuthURL("state-abc")
	if err != nil {
		t.Fatalf("AuthURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("state") != "state-abc" || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Fatalf("unexpected consent URL %s", raw)
	}
}

func TestNotConfigured(t *testing.T) {
	g := newTestGateway(nil, newMemCreds(), "", nil)

	if g.Configured() {
		t.Fatal("gateway without oauth config must report unconfigured")
	}
	if _, err := g.AuthURL("s"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := g.Connect(context.Background(), "acme", "code", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewOAuthConfig(t *testing.T) {
	if NewOAuthConfig("id", "", "http://x/cb") != nil {
		t.Fatal("incomplete client config should yield nil")
	}
	cfg := NewOAuthConfig("id", "secret", "http://x/cb")
	if cfg == nil || len(cfg.Scopes) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("code") != "auth-code" {
			t.Errorf("unexpected exchange %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()
	creds := newMemCreds()
	g := newTestGateway(testOAuth(srv.URL), creds, "", nil)

	cred, err := g.Connect(context.Background(), "acme", "auth-code", "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	saved := creds.get("acme")
	if cred.CalendarID != DefaultCalendarID || saved.RefreshToken != "rt-1" || saved.AccessToken != "at-1" {
		t.Fatalf("unexpected stored credential %+v", saved)
	}
	if saved.Status != StatusConnected || !saved.LastRefreshedAt.Equal(testNow) {
		t.Fatalf("unexpected connection state %+v", saved)
	}
}

func TestConnect_RequiresOfflineAccess(t *testing.T) {
	tokens, _ := tokenServer(t, "at-only")
	creds := newMemCreds()
	g := newTestGateway(testOAuth(tokens.URL), creds, "", nil)

	if _, err := g.Connect(context.Background(), "acme", "auth-code", ""); err == nil {
		t.Fatal("expected an error without a refresh token")
	}
	if _, err := creds.GetCredential(context.Background(), "acme"); !errors.Is(err, scheduling.ErrNotFound) {
		t.Fatal("nothing should be stored")
	}
}

func TestDisconnectAndStatus(t *testing.T) {
	creds := newMemCreds(connected(testNow))
	g := newTestGateway(testOAuth("http://127.0.0.1:0/token"), creds, "", nil)
	ctx := context.Background()

	if err := g.Disconnect(ctx, "acme"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	cred, err := g.Status(ctx, "acme")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cred.Status != StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", cred.Status)
	}
	if _, err := g.ValidCredential(ctx, "acme"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after disconnect, got %v", err)
	}
	fb, err := g.QueryBusy(ctx, "acme", testNow, testNow.Add(time.Hour))
	if err != nil || fb.Connected {
		t.Fatalf("expected empty result, got %+v, %v", fb, err)
	}
}
