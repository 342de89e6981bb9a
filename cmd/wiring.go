// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/phuslu/log"
	"github.com/snapbite/snapbite/config"
	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/ingest"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/spatial"
	"github.com/snapbite/snapbite/utils/httputils"
	"github.com/snapbite/snapbite/vision"
	"github.com/spf13/cobra"
)

// app holds everything a command may need. Close releases it.
type app struct {
	db       *sql.DB
	repo     restaurant.Repository
	resolver *geocoding.Resolver
	free     *geocoding.NominatimGeocoder
	analyzer vision.Analyzer
	pipeline *ingest.Pipeline
	cache    *geocoding.BadgerCache
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("closing geocoding cache")
		}
	}

	if a.db != nil {
		a.db.Close()
	}
}

func httpClient(timeout time.Duration) *http.Client {
	var trace io.Writer
	if rootOpts.TraceHTTP || rootOpts.TraceHTTPBody {
		trace = os.Stderr
	}

	return httputils.NewClient(httputils.ClientOptions{
		UserAgent: userAgent(),
		Timeout:   timeout,
		Trace:     trace,
		TraceBody: rootOpts.TraceHTTPBody,
	})
}

func openStore(ctx context.Context) (*sql.DB, restaurant.Repository, error) {
	driver := cfg.Database.Driver
	if driver == "" {
		driver = restaurant.DriverFor(cfg.Database.Path)
	}

	log.Debug().Str("driver", driver).Str("path", cfg.Database.Path).Msg("opening restaurant store")

	return restaurant.Open(ctx, driver, cfg.Database.Path)
}

func mapsAPIKey(ctx context.Context) string {
	g := cfg.Geocoding
	if g.GoogleAPIKey != "" || !g.DiscoverKey {
		return g.GoogleAPIKey
	}

	log.Info().Msg("GOOGLE_MAPS_API_KEY is not set, looking it up via ADC")

	key, err := config.LookupMapsKey(ctx, g.KeyDisplayName)
	if err != nil {
		log.Warn().Err(err).Msg("could not retrieve the maps key via ADC, primary geocoding disabled")

		return ""
	}

	return key
}

func newResolver(ctx context.Context) (*geocoding.Resolver, *geocoding.NominatimGeocoder, *geocoding.BadgerCache, error) {
	g := cfg.Geocoding
	client := httpClient(time.Duration(g.Timeout))

	var primary geocoding.Geocoder
	if key := mapsAPIKey(ctx); key != "" {
		primary = geocoding.NewGoogleMapsGeocoder(key, g.GoogleBaseURL, client)
	}

	free := geocoding.NewNominatimGeocoder(geocoding.NominatimOptions{
		BaseURL:    g.NominatimBaseURL,
		UserAgent:  userAgent(),
		Delay:      time.Duration(g.Delay),
		HTTPClient: client,
	})

	opts := []geocoding.Option{
		geocoding.WithTimeout(time.Duration(g.Timeout)),
		geocoding.WithDefault(spatial.Coordinates{Latitude: g.DefaultLatitude, Longitude: g.DefaultLongitude}, g.Jitter),
	}

	var cache *geocoding.BadgerCache

	if g.CacheDir != "" {
		var err error

		cache, err = geocoding.OpenBadgerCache(g.CacheDir, time.Duration(g.CacheTTL))
		if err != nil {
			return nil, nil, nil, err
		}

		opts = append(opts, geocoding.WithCache(cache))
	}

	return geocoding.NewResolver(primary, free, opts...), free, cache, nil
}

func newAnalyzer(ctx context.Context) (vision.Analyzer, error) {
	v := cfg.Vision
	if v.Provider == "none" {
		return nil, nil
	}

	if v.APIKey() == "" {
		log.Warn().Str("provider", v.Provider).Msg("no vision API key configured, screenshots need manual entry")

		return nil, nil
	}

	switch v.Provider {
	case "openai":
		return vision.NewOpenAIClient(vision.OpenAIOptions{
			APIKey:     v.APIKey(),
			BaseURL:    v.BaseURL,
			Model:      v.Model,
			MaxTokens:  v.MaxTokens,
			HTTPClient: httpClient(time.Duration(v.Timeout)),
		}), nil
	case "anthropic":
		return vision.NewAnthropicClient(vision.AnthropicOptions{
			APIKey:     v.APIKey(),
			BaseURL:    v.BaseURL,
			Model:      v.Model,
			MaxTokens:  v.MaxTokens,
			HTTPClient: httpClient(time.Duration(v.Timeout)),
		}), nil
	case "gemini":
		client, err := vision.NewGeminiClient(ctx, vision.GeminiOptions{
			APIKey:     v.APIKey(),
			BaseURL:    v.BaseURL,
			Model:      v.Model,
			MaxTokens:  v.MaxTokens,
			HTTPClient: httpClient(time.Duration(v.Timeout)),
		})
		if err != nil {
			return nil, err
		}

		return client, nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", v.Provider)
	}
}

// newApp wires the store, the resolver and, when withVision is set, the
// vision backend and ingestion pipeline.
func newApp(ctx context.Context, withVision bool) (*app, error) {
	a := &app{}

	var err error

	if a.db, a.repo, err = openStore(ctx); err != nil {
		return nil, err
	}

	if a.resolver, a.free, a.cache, err = newResolver(ctx); err != nil {
		a.Close()

		return nil, err
	}

	if withVision {
		if a.analyzer, err = newAnalyzer(ctx); err != nil {
			a.Close()

			return nil, err
		}
	}

	a.pipeline = ingest.New(a.analyzer, a.resolver, a.repo,
		ingest.WithVisionTimeout(time.Duration(cfg.Vision.Timeout)))

	return a, nil
}

type positionFlags struct {
	Latitude  float64
	Longitude float64
}

func (p *positionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&p.Latitude, "lat", 0, "Current latitude (default from [location])")
	cmd.Flags().Float64Var(&p.Longitude, "lng", 0, "Current longitude (default from [location])")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

// resolve returns the --lat/--lng position, falling back to the configured
// location.
func (p *positionFlags) resolve(cmd *cobra.Command) (spatial.Coordinates, error) {
	var c spatial.Coordinates

	switch {
	case cmd.Flags().Changed("lat"):
		c = spatial.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude}
	case cfg.Location.Latitude != nil && cfg.Location.Longitude != nil:
		c = spatial.Coordinates{Latitude: *cfg.Location.Latitude, Longitude: *cfg.Location.Longitude}
	default:
		return c, errors.New("no position: pass --lat and --lng or set [location] in the config")
	}

	return c, c.Validate()
}

func locator() restaurant.Locator {
	if cfg.Location.Latitude == nil || cfg.Location.Longitude == nil {
		return nil
	}

	return restaurant.StaticLocator(spatial.Coordinates{Latitude: *cfg.Location.Latitude, Longitude: *cfg.Location.Longitude})
}
