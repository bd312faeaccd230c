// Package scraper implements the session-authenticated harvesting client:
// anonymous token acquisition, credential login, paginated category feeds,
// and per-product detail fetches against the upstream JSON APIs.
package scraper

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/thepicksmart/wish-harvest/config"
)

const (
	routeRoot   = "/"
	routeLogin  = "/api/email-login"
	routeFeed   = "/api/feed/get-filtered-feed"
	routeDetail = "/api/product/get"

	feedReferer   = "/feed/tabbed_feed_latest"
	detailReferer = "/feed/tabbed_feed_latest/product/"
	productPath   = "/product/"

	acceptJSON = "application/json, text/plain, */*"
)

// Client issues all upstream HTTP calls. Session state is passed explicitly
// into every call rather than held in a shared cookie jar, so the client
// itself carries no mutable per-run state.
type Client struct {
	http    *resty.Client
	cfg     *config.Config
	retry   retryPolicy
	metrics *Metrics
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))

	if metrics != nil {
		instrument(httpClient, metrics)
	}

	return &Client{
		http: httpClient,
		cfg:  cfg,
		retry: retryPolicy{
			Backoff:     cfg.RetryBackoff,
			MaxAttempts: cfg.MaxAttempts,
		},
		metrics: metrics,
	}, nil
}

// SetTransport overrides the underlying round tripper. Used by tests to plug
// a mock transport.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// request builds a resty request carrying the session's cookies and the
// anti-forgery header every API endpoint expects.
func (c *Client) request(s Session) *resty.Request {
	req := c.http.R()
	for name, value := range s.cookies {
		req.SetCookie(&http.Cookie{Name: name, Value: value})
	}
	if token := s.Cookie(cookieXSRF); token != "" {
		req.SetHeader("X-XSRFToken", token)
	}
	return req
}

// instrument wires request counting and latency observation into the resty
// client hooks.
func instrument(client *resty.Client, metrics *Metrics) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		metrics.IncRequest(phaseFromPath(req.URL))
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		metrics.ObserveDuration(resp.Time())
		return nil
	})
}

func phaseFromPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "other"
	}
	switch parsed.Path {
	case routeLogin:
		return "login"
	case routeFeed:
		return "feed"
	case routeDetail:
		return "detail"
	case routeRoot, "":
		return "root"
	}
	return "other"
}

// checkStatus converts a non-2xx response into a classified error. A nil
// return means the response body is safe to decode.
func checkStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return ErrStatus{Code: code, Err: fmt.Errorf("http status %d", code)}
}

// ProductLink returns the public listing URL for a product id. A trailing
// slash on the configured base URL is tolerated.
func (c *Client) ProductLink(productID string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + productPath + productID
}
