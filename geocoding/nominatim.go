// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/snapbite/snapbite/spatial"
	"golang.org/x/time/rate"
)

const (
	// NominatimBaseURL is the public OpenStreetMap Nominatim instance.
	NominatimBaseURL = "https://nominatim.openstreetmap.org"

	// NominatimDelay is waited before every request to the public instance,
	// whose usage policy allows at most one request per second.
	NominatimDelay = time.Second
)

// NominatimGeocoder uses the free OpenStreetMap Nominatim service.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	delay      time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NominatimOptions configures NewNominatimGeocoder.
type NominatimOptions struct {
	// BaseURL defaults to NominatimBaseURL.
	BaseURL string

	// UserAgent is mandatory per the Nominatim usage policy.
	UserAgent string

	// Delay is waited before each request. Negative disables it; zero
	// selects NominatimDelay.
	Delay time.Duration

	HTTPClient *http.Client
}

// NewNominatimGeocoder creates a new Nominatim geocoder.
func NewNominatimGeocoder(opts NominatimOptions) *NominatimGeocoder {
	if opts.BaseURL == "" {
		opts.BaseURL = NominatimBaseURL
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "snapbite restaurant discovery"
	}

	if opts.Delay == 0 {
		opts.Delay = NominatimDelay
	}

	if opts.Delay < 0 {
		opts.Delay = 0
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	// concurrent ingestions share the one request per second budget
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &NominatimGeocoder{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		delay:      opts.Delay,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: opts.HTTPClient,
	}
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// Name implements Geocoder.
func (n *NominatimGeocoder) Name() string {
	return "nominatim"
}

func (n *NominatimGeocoder) wait(ctx context.Context) error {
	if n.delay > 0 {
		timer := time.NewTimer(n.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return newError(ErrorTypeTimeout, ctx.Err(), "nominatim: waiting for rate limit delay")
		case <-timer.C:
		}
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return newError(ErrorTypeTimeout, err, "nominatim: waiting for rate limiter")
	}

	return nil
}

func (n *NominatimGeocoder) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := n.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building nominatim request: %w", err)
	}

	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return classifyTransportError("nominatim", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ClassifyHTTPError("nominatim", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(ErrorTypeInvalidResponse, err, "decoding nominatim response")
	}

	return nil
}

func parseCoordinates(lat, lon string) (spatial.Coordinates, error) {
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return spatial.Coordinates{}, fmt.Errorf("parsing latitude %q: %w", lat, err)
	}

	longitude, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return spatial.Coordinates{}, fmt.Errorf("parsing longitude %q: %w", lon, err)
	}

	c := spatial.Coordinates{Latitude: latitude, Longitude: longitude}

	return c, c.Validate()
}

// Geocode implements Geocoder.
func (n *NominatimGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	if strings.TrimSpace(address) == "" {
		return nil, newError(ErrorTypeInvalidRequest, ErrEmptyAddress, "nominatim")
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", address)
	params.Set("limit", "1")

	var places []nominatimPlace
	if err := n.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}

	if len(places) == 0 {
		return nil, newError(ErrorTypeNotFound, nil, "nominatim geocoding returned no results for: %s", address)
	}

	coords, err := parseCoordinates(places[0].Lat, places[0].Lon)
	if err != nil {
		return nil, newError(ErrorTypeInvalidResponse, err, "nominatim returned invalid coordinates")
	}

	confidence := "low"
	if places[0].Importance >= 0.5 {
		confidence = "medium"
	}

	return &Result{
		Coordinates: coords,
		Confidence:  confidence,
		Provider:    n.Name(),
		DisplayName: places[0].DisplayName,
	}, nil
}

// Reverse returns a human readable address for c. It never fails: when the
// lookup does, the coordinates themselves are formatted with four decimals.
func (n *NominatimGeocoder) Reverse(ctx context.Context, c spatial.Coordinates) string {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))

	var place nominatimPlace
	if err := n.get(ctx, "/reverse", params, &place); err != nil || place.DisplayName == "" {
		return c.String()
	}

	return place.DisplayName
}
