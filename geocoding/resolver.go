// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/snapbite/snapbite/spatial"
)

var (
	// DefaultReference is the coordinate used when every provider fails.
	DefaultReference = spatial.Coordinates{Latitude: 37.7749, Longitude: -122.4194}

	// DefaultJitter bounds the random offset, in degrees, applied on each
	// axis to DefaultReference so that unresolved restaurants do not stack
	// on a single point (and trip the proximity duplicate check).
	DefaultJitter = 0.05
)

// DefaultTimeout bounds each provider attempt.
const DefaultTimeout = 15 * time.Second

// Attempt records the outcome of one step of the chain.
type Attempt struct {
	Provider string
	Err      error
}

// Resolution is the outcome of Resolver.Resolve. Coordinates is always set
// and valid; failures absorbed on the way are listed in Attempts.
type Resolution struct {
	Coordinates spatial.Coordinates
	Tier        Tier
	Provider    string
	DisplayName string
	Attempts    []Attempt
}

// Err joins the errors of every failed attempt, or returns nil.
func (r Resolution) Err() error {
	errs := make([]error, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}

	return errors.Join(errs...)
}

// Resolver resolves addresses with an ordered fallback chain: cache, primary
// provider, free provider and finally a jittered default coordinate.
type Resolver struct {
	primary   Geocoder
	free      Geocoder
	cache     Cache
	reference spatial.Coordinates
	jitter    float64
	timeout   time.Duration
	random    func() float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables the result cache.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithDefault overrides the fallback reference point and jitter.
func WithDefault(reference spatial.Coordinates, jitter float64) Option {
	return func(r *Resolver) {
		r.reference = reference
		r.jitter = jitter
	}
}

// WithRandom replaces the [0,1) random source used for the jitter.
func WithRandom(f func() float64) Option {
	return func(r *Resolver) { r.random = f }
}

// NewResolver builds a Resolver. Either provider may be nil: a nil primary
// means no paid provider is configured.
func NewResolver(primary, free Geocoder, opts ...Option) *Resolver {
	r := &Resolver{
		primary:   primary,
		free:      free,
		reference: DefaultReference,
		jitter:    DefaultJitter,
		timeout:   DefaultTimeout,
		random:    rand.Float64,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Resolver) attempt(ctx context.Context, g Geocoder, address string) (*Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return g.Geocode(ctx, address)
}

// Resolve never fails: it always returns a usable, in-range coordinate.
func (r *Resolver) Resolve(ctx context.Context, address string) Resolution {
	var res Resolution

	address = strings.TrimSpace(address)
	if address == "" {
		res.Attempts = append(res.Attempts, Attempt{Provider: "input", Err: ErrEmptyAddress})

		return r.fallback(res, address)
	}

	if r.cache != nil {
		cached, ok, err := r.cache.Get(address)
		if err != nil {
			log.Warn().Err(err).Str("address", address).Msg("geocoding cache lookup failed")
		} else if ok {
			res.Coordinates = cached.Coordinates
			res.Tier = TierCached
			res.Provider = cached.Provider
			res.DisplayName = cached.DisplayName

			log.Debug().Str("address", address).Str("provider", cached.Provider).Msg("geocoded from cache")

			return res
		}
	}

	chain := []struct {
		tier Tier
		g    Geocoder
	}{
		{TierPrimary, r.primary},
		{TierFree, r.free},
	}

	for _, step := range chain {
		if step.g == nil {
			continue
		}

		if ctx.Err() != nil {
			res.Attempts = append(res.Attempts, Attempt{Provider: step.g.Name(), Err: ctx.Err()})

			continue
		}

		start := time.Now()

		result, err := r.attempt(ctx, step.g, address)
		if err != nil {
			log.Warn().Err(err).Str("provider", step.g.Name()).Str("kind", Kind(err)).Str("address", address).Dur("took", time.Since(start)).Msg("geocoding attempt failed")
			res.Attempts = append(res.Attempts, Attempt{Provider: step.g.Name(), Err: err})

			continue
		}

		res.Attempts = append(res.Attempts, Attempt{Provider: step.g.Name()})
		res.Coordinates = result.Coordinates
		res.Tier = step.tier
		res.Provider = result.Provider
		res.DisplayName = result.DisplayName

		log.Info().Str("provider", result.Provider).Str("tier", string(step.tier)).Str("address", address).Dur("took", time.Since(start)).Msg("geocoded")

		if r.cache != nil {
			if err := r.cache.Put(address, result); err != nil {
				log.Warn().Err(err).Str("address", address).Msg("geocoding cache write failed")
			}
		}

		return res
	}

	return r.fallback(res, address)
}

func (r *Resolver) fallback(res Resolution, address string) Resolution {
	res.Attempts = append(res.Attempts, Attempt{Provider: "default", Err: ErrGeocodingExhausted})
	res.Coordinates = r.Default()
	res.Tier = TierDefault
	res.Provider = "default"

	log.Warn().Err(res.Err()).Str("address", address).Str("coordinates", res.Coordinates.String()).Msg("geocoding exhausted, using default coordinates")

	return res
}

// Default returns the reference point perturbed by up to ±jitter degrees on
// each axis, clamped to the valid range.
func (r *Resolver) Default() spatial.Coordinates {
	return spatial.Coordinates{
		Latitude:  r.reference.Latitude + (r.random()-0.5)*2*r.jitter,
		Longitude: r.reference.Longitude + (r.random()-0.5)*2*r.jitter,
	}.Clamp()
}
