package scraper

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/thepicksmart/wish-harvest/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.Email = "ops@example.test"
	cfg.Password = "secret"
	cfg.Timeout = 2 * time.Second
	cfg.RetryBackoff = 5 * time.Millisecond
	cfg.MaxAttempts = 3
	cfg.DetailDelay = 0
	return cfg
}

func newTestClient(t *testing.T, cfg *config.Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	client, err := NewClient(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	client.SetTransport(transport)
	return client, transport
}

func TestAcquireAnonymousToken(t *testing.T) {
	cfg := testConfig()
	client, transport := newTestClient(t, cfg)

	resp := httpmock.NewStringResponse(200, `<html><script>sweeper_uuid="abc-123";</script></html>`)
	resp.Header.Set("Content-Type", "text/html")
	resp.Header.Add("Set-Cookie", "_xsrf=tok456; Path=/")
	transport.RegisterResponder("GET", cfg.BaseURL+"/", httpmock.ResponderFromResponse(resp))

	session, err := client.AcquireAnonymousToken(context.Background())
	if err != nil {
		t.Fatalf("acquire token: %v", err)
	}
	if got := session.Cookie("_xsrf"); got != "tok456" {
		t.Fatalf("_xsrf=%q, want tok456", got)
	}
	if got := session.Cookie("sweeper_uuid"); got != "abc-123" {
		t.Fatalf("sweeper_uuid=%q, want abc-123", got)
	}
}

func TestAcquireAnonymousTokenFailsOpenWithoutMarker(t *testing.T) {
	cfg := testConfig()
	client, transport := newTestClient(t, cfg)

	resp := httpmock.NewStringResponse(200, "<html>no marker here</html>")
	resp.Header.Add("Set-Cookie", "_xsrf=tok456; Path=/")
	transport.RegisterResponder("GET", cfg.BaseURL+"/", httpmock.ResponderFromResponse(resp))

	session, err := client.AcquireAnonymousToken(context.Background())
	if err != nil {
		t.Fatalf("missing marker must not be an error: %v", err)
	}
	if got := session.Cookie("sweeper_uuid"); got != "" {
		t.Fatalf("sweeper_uuid=%q, want empty", got)
	}
	if got := session.Cookie("_xsrf"); got != "tok456" {
		t.Fatalf("_xsrf=%q, want tok456", got)
	}
}

func TestAcquireAnonymousTokenNetworkFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	client, transport := newTestClient(t, cfg)

	transport.RegisterResponder("GET", cfg.BaseURL+"/",
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Name: "example.test"}}))

	if _, err := client.AcquireAnonymousToken(context.Background()); err == nil {
		t.Fatalf("network failure should be fatal")
	}
	// Exactly one request: no retry for token acquisition.
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls=%d, want 1", got)
	}
}

func TestEstablishSession(t *testing.T) {
	cfg := testConfig()
	client, transport := newTestClient(t, cfg)

	var gotXSRF, gotBody string
	transport.RegisterResponder("POST", cfg.BaseURL+"/api/email-login",
		func(req *http.Request) (*http.Response, error) {
			gotXSRF = req.Header.Get("X-XSRFToken")
			body, _ := io.ReadAll(req.Body)
			gotBody = string(body)

			resp := httpmock.NewStringResponse(200, `{"sweeper_uuid":"fresh-789"}`)
			resp.Header.Set("Content-Type", "application/json")
			resp.Header.Add("Set-Cookie", "session=s1; Path=/")
			return resp, nil
		})

	anon := NewSession(map[string]string{"_xsrf": "tok456"})
	session, err := client.EstablishSession(context.Background(), cfg.Email, cfg.Password, anon)
	if err != nil {
		t.Fatalf("establish session: %v", err)
	}

	if gotXSRF != "tok456" {
		t.Fatalf("X-XSRFToken=%q, want tok456", gotXSRF)
	}
	for _, field := range []string{"email=", "password=", "_buckets=", "_experiments="} {
		if !strings.Contains(gotBody, field) {
			t.Fatalf("login body %q missing %q", gotBody, field)
		}
	}
	if got := session.Cookie("sweeper_uuid"); got != "fresh-789" {
		t.Fatalf("sweeper_uuid=%q, want fresh-789", got)
	}
	if got := session.Cookie("session"); got != "s1" {
		t.Fatalf("session cookie=%q, want s1", got)
	}
	// The anonymous session is unchanged: upgrades produce a new value.
	if got := anon.Cookie("sweeper_uuid"); got != "" {
		t.Fatalf("anonymous session mutated: sweeper_uuid=%q", got)
	}
}

func TestEstablishSessionRejectsMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>login page</html>"},
		{name: "missing identifier", body: `{"success":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			client, transport := newTestClient(t, cfg)
			transport.RegisterResponder("POST", cfg.BaseURL+"/api/email-login",
				httpmock.NewStringResponder(200, tt.body))

			anon := NewSession(map[string]string{"_xsrf": "tok456"})
			if _, err := client.EstablishSession(context.Background(), cfg.Email, cfg.Password, anon); err == nil {
				t.Fatalf("malformed login response should fail")
			}
			// Login is never retried.
			if got := transport.GetTotalCallCount(); got != 1 {
				t.Fatalf("calls=%d, want 1", got)
			}
		})
	}
}
