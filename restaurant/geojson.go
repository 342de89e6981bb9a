// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"github.com/paulmach/orb/geojson"
)

// ToFeatureCollection converts records into GeoJSON point features.
func ToFeatureCollection(records []*Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, r := range records {
		f := geojson.NewFeature(r.Coordinates.Point())
		f.ID = r.ID

		f.Properties["name"] = r.Name
		f.Properties["address"] = r.Address
		f.Properties["cuisine"] = r.Cuisine
		f.Properties["price_range"] = string(r.PriceRange)
		f.Properties["source"] = string(r.Source)
		f.Properties["geocoding_tier"] = string(r.GeocodingTier)
		f.Properties["is_visited"] = r.IsVisited
		f.Properties["date_added"] = r.DateAdded

		if r.Rating != nil {
			f.Properties["rating"] = *r.Rating
		}

		if len(r.Tags) > 0 {
			f.Properties["tags"] = r.Tags
		}

		fc.Append(f)
	}

	return fc
}
