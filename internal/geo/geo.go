// Package geo resolves addresses to coordinates through the OpenStreetMap
// Nominatim API. Results are cached in process and outbound calls are rate
// limited to honor the usage policy.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoResult indicates the geocoder found nothing for the query.
var ErrNoResult = errors.New("geo: no result")

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "yaoundeconnect/1.0"
	defaultCacheTTL  = 24 * time.Hour
	defaultTimeout   = 10 * time.Second
)

// Location is a resolved point.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// Geocoder is the lookup surface the POI handlers depend on.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
	Reverse(ctx context.Context, lat, lon float64) (Location, error)
}

// Client is a Nominatim-backed Geocoder.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	ttl       time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	loc     Location
	expires time.Time
}

var _ Geocoder = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate Nominatim endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithCacheTTL overrides how long resolved locations are kept.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLimiter overrides the outbound rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// NewClient builds a geocoding client. Nominatim's usage policy caps
// anonymous clients at one request per second, which is the default limit.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		ttl:       defaultCacheTTL,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a free-form address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, fmt.Errorf("geo: address is required")
	}
	key := "f:" + strings.ToLower(address)
	if loc, ok := c.cached(key); ok {
		return loc, nil
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	var results []searchResult
	if err := c.get(ctx, "/search", q, &results); err != nil {
		return Location{}, err
	}
	if len(results) == 0 {
		return Location{}, ErrNoResult
	}
	loc, err := results[0].location()
	if err != nil {
		return Location{}, err
	}
	c.store(key, loc)
	return loc, nil
}

// Reverse resolves coordinates to a display address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Location, error) {
	key := fmt.Sprintf("r:%.5f,%.5f", lat, lon)
	if loc, ok := c.cached(key); ok {
		return loc, nil
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	var result searchResult
	if err := c.get(ctx, "/reverse", q, &result); err != nil {
		return Location{}, err
	}
	if result.DisplayName == "" {
		return Location{}, ErrNoResult
	}
	loc, err := result.location()
	if err != nil {
		return Location{}, err
	}
	c.store(key, loc)
	return loc, nil
}

func (r searchResult) location() (Location, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Location{}, fmt.Errorf("geo: parse latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Location{}, fmt.Errorf("geo: parse longitude %q: %w", r.Lon, err)
	}
	return Location{Latitude: lat, Longitude: lon, DisplayName: r.DisplayName}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("geo: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geo: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) cached(key string) (Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok || c.now().After(e.expires) {
		delete(c.cache, key)
		return Location{}, false
	}
	return e.loc, true
}

func (c *Client) store(key string, loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{loc: loc, expires: c.now().Add(c.ttl)}
}
