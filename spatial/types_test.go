// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sanFrancisco = Coordinates{Latitude: 37.7749, Longitude: -122.4194}

func TestDistanceSymmetricAndZero(t *testing.T) {
	points := []Coordinates{
		sanFrancisco,
		{Latitude: 40.7128, Longitude: -74.0060},
		{Latitude: -34.9011, Longitude: -56.1645},
		{Latitude: 89.9999, Longitude: 10},
		{Latitude: -89.9999, Longitude: -170},
		{Latitude: 0, Longitude: 179.9999},
		{Latitude: 0, Longitude: -179.9999},
	}

	for _, a := range points {
		assert.InDelta(t, 0, Distance(a, a), 1e-9, "distance(%s, %s)", a, a)

		for _, b := range points {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6, "distance(%s, %s)", a, b)
			assert.GreaterOrEqual(t, Distance(a, b), 0.0)
		}
	}
}

func TestDistanceFiveHundredMetersNorth(t *testing.T) {
	north := Coordinates{Latitude: 37.7794, Longitude: -122.4194}

	d := sanFrancisco.DistanceTo(north)

	assert.InEpsilon(t, 500, d, 0.01, "got %f meters", d)
}

func TestDistanceAcrossAntimeridian(t *testing.T) {
	east := Coordinates{Latitude: 0, Longitude: 179.9995}
	west := Coordinates{Latitude: 0, Longitude: -179.9995}

	// 0.001 degrees of longitude on the equator
	assert.InDelta(t, 111.19, Distance(east, west), 0.1)
}

func TestDistanceAntipodal(t *testing.T) {
	a := Coordinates{Latitude: 0, Longitude: 0}
	b := Coordinates{Latitude: 0, Longitude: 180}

	d := Distance(a, b)

	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadius, d, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Coordinates
		wantErr bool
	}{
		{"valid", sanFrancisco, false},
		{"poles", Coordinates{Latitude: 90, Longitude: 180}, false},
		{"lat too high", Coordinates{Latitude: 90.1, Longitude: 0}, true},
		{"lat too low", Coordinates{Latitude: -91, Longitude: 0}, true},
		{"lng too high", Coordinates{Latitude: 0, Longitude: 181}, true},
		{"nan", Coordinates{Latitude: math.NaN(), Longitude: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	c := Coordinates{Latitude: 95, Longitude: -200}.Clamp()

	assert.Equal(t, Coordinates{Latitude: 90, Longitude: -180}, c)
}

func TestCellsWithinCoversNeighbours(t *testing.T) {
	// ~400m north, must be in the covering set of a 500m disk
	near := Coordinates{Latitude: 37.7785, Longitude: -122.4194}

	cells, err := sanFrancisco.CellsWithin(500)
	require.NoError(t, err)

	target, err := near.Cell(CellResolution)
	require.NoError(t, err)

	assert.Contains(t, cells, target)
}

func TestPointRoundTrip(t *testing.T) {
	p := sanFrancisco.Point()

	assert.InDelta(t, sanFrancisco.Longitude, p.Lon(), 1e-12)
	assert.InDelta(t, sanFrancisco.Latitude, p.Lat(), 1e-12)
	assert.Equal(t, sanFrancisco, FromPoint(p))
}
