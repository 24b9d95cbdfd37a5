// Package geocode resolves place names and coordinates against a
// Nominatim-compatible HTTP service.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/risk.report/internal/httputil"
)

// DefaultLimit is the number of search results requested when the caller
// passes a non-positive limit.
const DefaultLimit = 5

// ErrNoMatch is returned when the service knows nothing at the coordinates.
var ErrNoMatch = errors.New("geocode: no match")

// Place is one search result.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Kind      string  `json:"kind,omitempty"`
}

// Client talks to a Nominatim-compatible endpoint.
type Client struct {
	http      httputil.HTTPClient
	baseURL   string
	userAgent string
	limit     int
}

// NewClient creates a Client. Nominatim's usage policy requires an
// identifying User-Agent, so an empty userAgent is rejected.
func NewClient(hc httputil.HTTPClient, baseURL, userAgent string) (*Client, error) {
	if hc == nil {
		return nil, fmt.Errorf("geocode: http client is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocode: invalid base URL %q", baseURL)
	}
	if strings.TrimSpace(userAgent) == "" {
		return nil, fmt.Errorf("geocode: user agent is required")
	}
	return &Client{
		http:      hc,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limit:     DefaultLimit,
	}, nil
}

// SetLimit sets the maximum number of search results.
func (c *Client) SetLimit(n int) {
	if n <= 0 {
		n = DefaultLimit
	}
	c.limit = n
}

// nominatimPlace is the jsonv2 result shape. Coordinates arrive as strings.
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Error       string `json:"error"`
}

// Search returns places matching a free-form query, best match first.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("geocode: empty query")
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(c.limit))

	var raw []nominatimPlace
	if err := c.get(ctx, "/search", params, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.place()
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

// ReverseLookup returns the display name for a coordinate pair.
func (c *Client) ReverseLookup(ctx context.Context, lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("geocode: coordinates out of range: %.4f, %.4f", lat, lon)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "jsonv2")

	var raw nominatimPlace
	if err := c.get(ctx, "/reverse", params, &raw); err != nil {
		return "", err
	}
	// Nominatim reports "Unable to geocode" with a 200 status.
	if raw.Error != "" || raw.DisplayName == "" {
		return "", ErrNoMatch
	}
	return raw.DisplayName, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v interface{}) error {
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if err := httputil.GetJSON(ctx, c.http, c.baseURL+path+"?"+params.Encode(), header, v); err != nil {
		return fmt.Errorf("geocode %s: %w", path, err)
	}
	return nil
}

func (r nominatimPlace) place() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: invalid latitude %q", r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: invalid longitude %q", r.Lon)
	}
	kind := r.Type
	if r.Category != "" && r.Type != "" {
		kind = r.Category + "/" + r.Type
	}
	return Place{Name: r.DisplayName, Latitude: lat, Longitude: lon, Kind: kind}, nil
}
