// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"github.com/snapbite/snapbite/geocoding"
)

// DefaultRegeocodeSchedule is the cron spec used by the server.
const DefaultRegeocodeSchedule = "@every 6h"

// AddressResolver resolves an address; *geocoding.Resolver satisfies it.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) geocoding.Resolution
}

// Regeocoder retries geocoding for restaurants that ended up on the default
// coordinate, typically because the providers were down at ingestion time.
type Regeocoder struct {
	repo     Repository
	resolver AddressResolver
}

// NewRegeocoder creates a Regeocoder.
func NewRegeocoder(repo Repository, resolver AddressResolver) *Regeocoder {
	return &Regeocoder{repo: repo, resolver: resolver}
}

// Run re-resolves every default-tier restaurant once and returns how many got
// real coordinates.
func (g *Regeocoder) Run(ctx context.Context) (int, error) {
	records, err := g.repo.ListByTier(ctx, geocoding.TierDefault)
	if err != nil {
		return 0, fmt.Errorf("listing default-tier restaurants: %w", err)
	}

	updated := 0

	for _, rec := range records {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		if rec.Address == AddressPlaceholder {
			continue
		}

		res := g.resolver.Resolve(ctx, rec.Address)
		if res.Tier == geocoding.TierDefault {
			continue
		}

		coords, tier := res.Coordinates, res.Tier

		if _, err := g.repo.Update(ctx, rec.ID, Patch{Coordinates: &coords, GeocodingTier: &tier}); err != nil {
			return updated, err
		}

		log.Info().Str("id", rec.ID).Str("name", rec.Name).Str("tier", string(tier)).Msg("re-geocoded restaurant")

		updated++
	}

	return updated, nil
}

// Schedule registers the job on c. Runs never overlap and are bounded by
// timeout; cancelling ctx aborts the run in progress.
func (g *Regeocoder) Schedule(ctx context.Context, c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()

		n, err := g.Run(ctx)
		if err != nil {
			log.Error().Err(err).Int("updated", n).Msg("re-geocoding failed")

			return
		}

		log.Info().Int("updated", n).Dur("took", time.Since(start)).Msg("re-geocoding finished")
	}))

	id, err := c.AddJob(spec, job)
	if err != nil {
		return 0, fmt.Errorf("scheduling re-geocoding %q: %w", spec, err)
	}

	return id, nil
}
