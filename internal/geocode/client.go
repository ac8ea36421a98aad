// Package geocode resolves fuzzed coordinates to locality strings and
// formats them for display.
package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/geo"
)

const serviceName = "geocoder"

// maxResponseSize caps the body read from the provider.
const maxResponseSize = 1 << 20

// Client calls a Nominatim-compatible /reverse endpoint.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient returns a Client for baseURL (e.g. https://nominatim.openstreetmap.org).
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		Quarter       string `json:"quarter"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Hamlet        string `json:"hamlet"`
		State         string `json:"state"`
		Country       string `json:"country"`
	} `json:"address"`
}

// Reverse returns the locality string for p, or "" when the provider has
// no address for it.
func (c *Client) Reverse(ctx context.Context, p geo.Point) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(p.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Longitude, 'f', 6, 64))
	q.Set("zoom", "14")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", apperr.Collaborator(serviceName, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Collaborator(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Collaborator(serviceName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return "", apperr.Collaborator(serviceName, fmt.Errorf("decode response: %w", err))
	}
	if body.Error != "" {
		// "Unable to geocode" for oceans and other unaddressed points
		return "", nil
	}

	a := body.Address
	return Join(
		firstNonEmpty(a.Suburb, a.Neighbourhood, a.Quarter),
		firstNonEmpty(a.City, a.Town, a.Village, a.Hamlet),
		a.State,
		a.Country,
	), nil
}

// Join assembles a locality string from its components, skipping empty ones.
func Join(subLocality, locality, area, country string) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{subLocality, locality, area, country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Disabled is used when no geocoder is configured; it never finds a locality.
type Disabled struct{}

func (Disabled) Reverse(context.Context, geo.Point) (string, error) { return "", nil }
