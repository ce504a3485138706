// Package geocode resolves coordinates to place names through the
// Nominatim reverse geocoding API. Results are cached by geohash so
// nearby lookups hit the network once, and outbound requests are
// throttled to the public usage limit.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"github.com/gridata-nz/population.report/internal/httputil"
	"github.com/gridata-nz/population.report/internal/monitoring"
	"github.com/gridata-nz/population.report/internal/timeutil"
)

// DefaultThrottle is the minimum spacing between Nominatim requests,
// per the public API usage policy.
const DefaultThrottle = time.Second

// DefaultPrecision is the geohash cache key precision. Five characters
// is roughly a 5km cell, coarse enough to reuse results across a chunk.
const DefaultPrecision = 5

type reverseResponse struct {
	Address     map[string]string `json:"address"`
	DisplayName string            `json:"display_name"`
}

// Address keys tried in order when picking a place name.
var placeKeys = []string{"city", "town", "village", "suburb", "county", "state", "country"}

// Client is a caching, throttled reverse geocoder.
type Client struct {
	HTTP      httputil.Client
	Clock     timeutil.Clock
	BaseURL   string
	Contact   string // contact address advertised in the User-Agent
	Throttle  time.Duration
	Precision int

	mu    sync.Mutex
	cache map[string]string
	last  time.Time
}

// New returns a Client with default endpoint, throttle and precision.
func New(httpClient httputil.Client, clock timeutil.Clock) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Client{
		HTTP:      httpClient,
		Clock:     clock,
		BaseURL:   "https://nominatim.openstreetmap.org/reverse",
		Contact:   "contact@example.com",
		Throttle:  DefaultThrottle,
		Precision: DefaultPrecision,
		cache:     make(map[string]string),
	}
}

// Placename resolves a WGS84 coordinate to a human place name. Cached
// results return immediately; everything else costs one throttled
// network round trip.
func (c *Client) Placename(ctx context.Context, lon, lat float64) (string, error) {
	key := geohash.EncodeWithPrecision(lat, lon, c.precision())

	c.mu.Lock()
	if name, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return name, nil
	}
	c.mu.Unlock()

	name, err := c.lookup(ctx, lon, lat)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[key] = name
	c.mu.Unlock()
	return name, nil
}

// CacheSize returns the number of cached place names.
func (c *Client) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *Client) lookup(ctx context.Context, lon, lat float64) (string, error) {
	c.waitTurn()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(lon, lat), nil)
	if err != nil {
		return "", fmt.Errorf("build reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("NZPopulationAnalysis/1.0 (%s)", c.Contact))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode %.4f,%.4f: %w", lat, lon, err)
	}

	var parsed reverseResponse
	if err := httputil.ReadJSON(resp, &parsed); err != nil {
		return "", fmt.Errorf("reverse geocode %.4f,%.4f: %w", lat, lon, err)
	}

	name := pickPlacename(&parsed)
	if name == "" {
		name = fmt.Sprintf("Unknown Region (%.2f,%.2f)", lat, lon)
	}
	monitoring.Logf("Geocoded %.4f,%.4f -> %s", lat, lon, name)
	return name, nil
}

// waitTurn sleeps until the throttle interval since the last request has
// elapsed, then claims the current slot.
func (c *Client) waitTurn() {
	throttle := c.Throttle
	if throttle <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.last.IsZero() {
		if elapsed := c.Clock.Since(c.last); elapsed < throttle {
			c.Clock.Sleep(throttle - elapsed)
		}
	}
	c.last = c.Clock.Now()
}

func (c *Client) requestURL(lon, lat float64) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")
	return c.BaseURL + "?" + q.Encode()
}

func (c *Client) precision() int {
	if c.Precision <= 0 || c.Precision > 12 {
		return DefaultPrecision
	}
	return c.Precision
}

// pickPlacename chooses the most specific populated address component,
// falling back to the head of the display name.
func pickPlacename(r *reverseResponse) string {
	for _, key := range placeKeys {
		if v := r.Address[key]; v != "" {
			return v
		}
	}
	if r.DisplayName != "" {
		return strings.TrimSpace(strings.SplitN(r.DisplayName, ",", 2)[0])
	}
	return ""
}
