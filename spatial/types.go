// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the coordinate type shared by every other package and
// the great-circle distance used for deduplication and proximity checks.
package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371e3

// CellResolution is the H3 resolution stored with every restaurant. Cells at
// this resolution have an average edge of roughly 200 meters.
const CellResolution = 9

// CellEdgeMeters is the average hexagon edge length at CellResolution.
const CellEdgeMeters = 200.786

// cellEdgeMinRatio bounds how much smaller than average a cell edge gets
// anywhere on the globe.
const cellEdgeMinRatio = 0.5

// Coordinates is an immutable latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String returns a string representation of the Coordinates.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// Validate checks that the coordinates are within the valid WGS84 range.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90 (got %f)", c.Latitude)
	}

	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180 (got %f)", c.Longitude)
	}

	return nil
}

// Valid reports whether Validate succeeds.
func (c Coordinates) Valid() bool {
	return c.Validate() == nil
}

// Clamp returns the coordinates forced into the valid range.
func (c Coordinates) Clamp() Coordinates {
	return Coordinates{
		Latitude:  math.Max(-90, math.Min(90, c.Latitude)),
		Longitude: math.Max(-180, math.Min(180, c.Longitude)),
	}
}

// DistanceTo returns the Haversine distance to other in meters.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return Distance(c, other)
}

// Distance calculates the great-circle distance between a and b in meters
// using the Haversine formula. The result is symmetric and zero for identical
// points. Longitudes on both sides of the antimeridian need no special
// handling: sin²(Δλ/2) is periodic, so 179.9 and -179.9 are close.
func Distance(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// rounding can push h marginally outside [0, 1] for antipodal points
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Cell returns the H3 cell containing the coordinates at resolution res.
func (c Coordinates) Cell(res int) (h3.Cell, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), res)
	if err != nil {
		return 0, fmt.Errorf("converting %s to h3 cell at res %d: %w", c, res, err)
	}

	return cell, nil
}

// CellsWithin returns the H3 cells at CellResolution that cover a disk of
// radius meters around c. It over-approximates: callers still need to filter
// by exact distance.
func (c Coordinates) CellsWithin(radius float64) ([]h3.Cell, error) {
	origin, err := c.Cell(CellResolution)
	if err != nil {
		return nil, err
	}

	// the distance between neighbouring cell centers is sqrt(3) edges
	step := math.Sqrt(3) * CellEdgeMeters * cellEdgeMinRatio
	k := int(math.Ceil(radius/step)) + 1

	cells, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, fmt.Errorf("computing grid disk k=%d: %w", k, err)
	}

	return cells, nil
}

// Point converts the coordinates into an orb point (longitude first).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// FromPoint converts an orb point back into Coordinates.
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{Latitude: p.Lat(), Longitude: p.Lon()}
}
