package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/go-resty/resty/v2"
)

const (
	cookieXSRF    = "_xsrf"
	cookieSweeper = "sweeper_uuid"
)

// sweeperPattern matches the session identifier the site embeds in its root
// page HTML.
var sweeperPattern = regexp.MustCompile(`sweeper_uuid="(.*?)";`)

// Session is the cookie state shared by every authenticated call. It is
// immutable after construction: session upgrades produce a new value.
type Session struct {
	cookies map[string]string
}

// NewSession builds a session from a cookie map. The map is copied.
func NewSession(cookies map[string]string) Session {
	s := Session{cookies: make(map[string]string, len(cookies))}
	for name, value := range cookies {
		s.cookies[name] = value
	}
	return s
}

// Cookie returns the named cookie value, or "" when absent.
func (s Session) Cookie(name string) string {
	return s.cookies[name]
}

// Len returns the number of cookies held.
func (s Session) Len() int {
	return len(s.cookies)
}

// merged returns a new session with extra cookies layered on top.
func (s Session) merged(extra map[string]string) Session {
	out := Session{cookies: make(map[string]string, len(s.cookies)+len(extra))}
	for name, value := range s.cookies {
		out.cookies[name] = value
	}
	for name, value := range extra {
		out.cookies[name] = value
	}
	return out
}

func cookiesFromResponse(resp *resty.Response) map[string]string {
	out := make(map[string]string)
	for _, cookie := range resp.Cookies() {
		out[cookie.Name] = cookie.Value
	}
	return out
}

// AcquireAnonymousToken fetches the site root and builds the anonymous
// session: response cookies (including the anti-forgery token) plus the
// session identifier embedded in the HTML when present. The pattern match
// fails open; a transport failure is fatal and is not retried.
func (c *Client) AcquireAnonymousToken(ctx context.Context) (Session, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(routeRoot)
	if err != nil {
		return Session{}, fmt.Errorf("fetch site root: %w", classify(err))
	}
	if err := checkStatus(resp); err != nil {
		return Session{}, fmt.Errorf("fetch site root: %w", err)
	}

	cookies := cookiesFromResponse(resp)
	if match := sweeperPattern.FindSubmatch(resp.Body()); match != nil {
		cookies[cookieSweeper] = string(match[1])
	} else {
		slog.Debug("session identifier marker not found in root page")
	}

	session := NewSession(cookies)
	slog.Info("anonymous session acquired",
		slog.Int("cookies", session.Len()),
		slog.Bool("xsrf", session.Cookie(cookieXSRF) != ""),
	)
	return session, nil
}

type loginResponse struct {
	SweeperUUID string `json:"sweeper_uuid"`
}

// EstablishSession exchanges credentials for an authenticated session. Any
// failure here is terminal: credentials are either valid or they are not,
// so nothing is retried.
func (c *Client) EstablishSession(ctx context.Context, email, password string, s Session) (Session, error) {
	resp, err := c.request(s).
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8").
		SetHeader("Accept", acceptJSON).
		SetFormData(map[string]string{
			"email":        email,
			"password":     password,
			"_buckets":     "",
			"_experiments": "",
		}).
		Post(routeLogin)
	if err != nil {
		return Session{}, fmt.Errorf("login request: %w", classify(err))
	}
	if err := checkStatus(resp); err != nil {
		return Session{}, fmt.Errorf("login request: %w", err)
	}

	var body loginResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Session{}, fmt.Errorf("authentication failed: malformed login response: %w", err)
	}
	if body.SweeperUUID == "" {
		return Session{}, fmt.Errorf("authentication failed: login response missing session identifier")
	}

	extra := cookiesFromResponse(resp)
	extra[cookieSweeper] = body.SweeperUUID

	session := s.merged(extra)
	slog.Info("session established", slog.String("email", email))
	return session, nil
}
