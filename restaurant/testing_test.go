// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/spatial"
	"github.com/stretchr/testify/require"
)

var (
	sanFrancisco = spatial.Coordinates{Latitude: 37.7749, Longitude: -122.4194}
	testNow      = time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)
)

// metersNorth returns c moved north by meters.
func metersNorth(c spatial.Coordinates, meters float64) spatial.Coordinates {
	return spatial.Coordinates{
		Latitude:  c.Latitude + meters/(spatial.EarthRadius*math.Pi/180),
		Longitude: c.Longitude,
	}
}

func newRecord(name string, c spatial.Coordinates) *Record {
	rating := 4.2

	rec := &Record{
		ID:            NewID(),
		Name:          name,
		Address:       "1 Market St, San Francisco",
		Coordinates:   c,
		GeocodingTier: geocoding.TierPrimary,
		Cuisine:       "Italian",
		Rating:        &rating,
		Source:        SourceVision,
		Tags:          []string{"pizza"},
		DateAdded:     testNow,
	}
	rec.Normalize()

	return rec
}

// forEachDriver runs f against an empty in-memory store of every driver.
func forEachDriver(t *testing.T, f func(t *testing.T, repo Repository)) {
	t.Helper()

	for _, driver := range []string{DriverDuckDB, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			db, repo, err := Open(context.Background(), driver, "", WithClock(func() time.Time { return testNow }))
			require.NoError(t, err)

			t.Cleanup(func() { db.Close() })

			f(t, repo)
		})
	}
}
