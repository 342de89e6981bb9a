// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"

	"github.com/snapbite/snapbite/spatial"
)

// Tier identifies which step of the resolution chain produced a coordinate.
type Tier string

const (
	TierCached  Tier = "cached"
	TierPrimary Tier = "primary"
	TierFree    Tier = "free"
	TierDefault Tier = "default"
	// TierManual marks coordinates supplied by the user, never by the resolver.
	TierManual Tier = "manual"
)

// Result represents a geocoding result from any provider.
type Result struct {
	Coordinates spatial.Coordinates `json:"coordinates"`
	Confidence  string              `json:"confidence,omitempty"` // high, medium, low
	Provider    string              `json:"provider"`
	DisplayName string              `json:"display_name,omitempty"`
}

// Geocoder turns a free-text address into coordinates.
type Geocoder interface {
	// Name identifies the provider in logs and attempts.
	Name() string

	Geocode(ctx context.Context, address string) (*Result, error)
}
