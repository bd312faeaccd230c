// Package config holds run configuration for the harvester.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds harvester configuration.
type Config struct {
	BaseURL string

	// Credentials for session establishment. Sourced from the environment
	// only, never from flags.
	Email    string
	Password string

	// Categories maps upstream category ids to human-readable labels. One
	// output file is produced per entry.
	Categories map[string]string

	PageCount  int
	PageSize   int
	PriceFloor float64

	Timeout      time.Duration
	RetryBackoff time.Duration
	// MaxAttempts caps transient-failure retries per request. Zero opts
	// into unbounded retry, matching the upstream-availability tradeoff of
	// never skipping a page.
	MaxAttempts int
	DetailDelay time.Duration

	OutputDir   string
	UserAgent   string
	Vendor      string
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://www.wish.com",
		Categories:   DefaultCategories(),
		PageCount:    1,
		PageSize:     20,
		PriceFloor:   12,
		Timeout:      180 * time.Second,
		RetryBackoff: 60 * time.Second,
		MaxAttempts:  8,
		DetailDelay:  3 * time.Second,
		OutputDir:    "output",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/65.0.3325.162 Safari/537.36",
		Vendor:       "ThePicksmart",
		MetricsAddr:  "",
		Verbose:      false,
	}
}

// DefaultCategories returns the known upstream category id to label map.
func DefaultCategories() map[string]string {
	return map[string]string{
		"tag_53dc186321a86318bdc87ef8": "Fashion",
		"tag_53dc186421a86318bdc87f20": "Gadgets",
		"tag_53dc314721a86346c126eaec": "Sports & Outdoors",
		"tag_53dc186321a86318bdc87ef9": "Tops",
		"tag_53dc186321a86318bdc87f07": "Bottoms",
		"tag_53dc186421a86318bdc87f1c": "Watches",
		"tag_53dc186421a86318bdc87f31": "Shoes",
		"tag_5899202d6fa88c49f7c6bb5d": "Automotive",
		"tag_53dc2e9e21a86346c126eae4": "Underwear",
		"tag_53dc186421a86318bdc87f22": "Wallets & Bags",
		"tag_53dc186421a86318bdc87f16": "Accessories",
		"tag_54ac6e18f8a0b3724c6c473f": "Hobbies",
		"tag_53dc186421a86318bdc87f0f": "Phone Upgrades",
		"tag_53e9157121a8633c567eb0c2": "Home Decor",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	for id, label := range c.Categories {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("category id cannot be empty")
		}
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("category %q label cannot be empty", id)
		}
	}
	if c.PageCount <= 0 {
		return fmt.Errorf("page count must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.PriceFloor < 0 {
		return fmt.Errorf("price floor cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative")
	}
	if c.DetailDelay < 0 {
		return fmt.Errorf("detail delay cannot be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Vendor == "" {
		return fmt.Errorf("vendor cannot be empty")
	}

	return nil
}

// ParseCategories parses an "id=label,id=label" list into a category map.
func ParseCategories(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, label, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed category pair %q, want id=label", pair)
		}
		id = strings.TrimSpace(id)
		label = strings.TrimSpace(label)
		if id == "" || label == "" {
			return nil, fmt.Errorf("malformed category pair %q, want id=label", pair)
		}
		out[id] = label
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("category list is empty")
	}
	return out, nil
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q is not an integer: %w", name, raw, err)
	}
	return value, true, nil
}

// EnvFloat reads a float environment variable.
func EnvFloat(name string) (float64, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q is not a number: %w", name, raw, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
