// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/snapbite/snapbite/spatial"
)

// ProximityAlertRadiusMeters is how close the user must be to a saved
// restaurant to get an alert. Unrelated to DuplicateRadiusMeters.
const ProximityAlertRadiusMeters = 500.0

// Locator provides the user's current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (spatial.Coordinates, error)
}

// StaticLocator always reports the same position.
type StaticLocator spatial.Coordinates

// CurrentPosition implements Locator.
func (l StaticLocator) CurrentPosition(context.Context) (spatial.Coordinates, error) {
	return spatial.Coordinates(l), nil
}

// Alert is a saved restaurant close to the user.
type Alert struct {
	Restaurant *Record `json:"restaurant"`
	Distance   float64 `json:"distance"`
	Message    string  `json:"message"`
}

// WithDistance pairs a record with its distance to a reference point.
type WithDistance struct {
	*Record
	Distance float64 `json:"distance"`
}

// SortByDistance returns the records ordered by distance from position,
// closest first. Ties keep their input order.
func SortByDistance(position spatial.Coordinates, records []*Record) []WithDistance {
	out := make([]WithDistance, len(records))
	for i, r := range records {
		out[i] = WithDistance{Record: r, Distance: position.DistanceTo(r.Coordinates)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})

	return out
}

// ProximityAlerts returns an alert for every record within
// ProximityAlertRadiusMeters of position, closest first.
func ProximityAlerts(position spatial.Coordinates, records []*Record) []Alert {
	var alerts []Alert

	for _, r := range SortByDistance(position, records) {
		if r.Distance > ProximityAlertRadiusMeters {
			break
		}

		alerts = append(alerts, Alert{
			Restaurant: r.Record,
			Distance:   r.Distance,
			Message:    fmt.Sprintf("%s is %dm away", r.Name, int(math.Round(r.Distance))),
		})
	}

	return alerts
}
