// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package restaurant holds the persisted restaurant record, the duplicate and
// proximity rules applied to it, and its storage.
package restaurant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/spatial"
	"github.com/snapbite/snapbite/utils/textutils"
)

// AddressPlaceholder is stored when the address is unknown.
const AddressPlaceholder = "Address not available"

// DefaultCuisine is stored when no cuisine was extracted or entered.
const DefaultCuisine = "Unknown"

// PriceRange is the number of dollar signs shown for a venue.
type PriceRange string

const (
	PriceBudget    PriceRange = "$"
	PriceModerate  PriceRange = "$$"
	PriceExpensive PriceRange = "$$$"
	PriceLuxury    PriceRange = "$$$$"
)

// DefaultPriceRange is used when the price range is unknown.
const DefaultPriceRange = PriceModerate

// ParsePriceRange accepts "$".."$$$$" and the numeric shorthand "1".."4".
func ParsePriceRange(s string) (PriceRange, error) {
	s = strings.TrimSpace(s)

	switch s {
	case "":
		return DefaultPriceRange, nil
	case "1":
		return PriceBudget, nil
	case "2":
		return PriceModerate, nil
	case "3":
		return PriceExpensive, nil
	case "4":
		return PriceLuxury, nil
	}

	p := PriceRange(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid price range %q", s)
	}

	return p, nil
}

// Valid reports whether p is one of the four known ranges.
func (p PriceRange) Valid() bool {
	switch p {
	case PriceBudget, PriceModerate, PriceExpensive, PriceLuxury:
		return true
	default:
		return false
	}
}

// Source tells how the record's fields were obtained.
type Source string

const (
	SourceVision Source = "vision-extracted"
	SourceManual Source = "manual"
)

// Record is a stored restaurant.
type Record struct {
	ID            string              `json:"id"`
	Name          string              `json:"name" validate:"required"`
	Address       string              `json:"address"`
	Coordinates   spatial.Coordinates `json:"coordinates"`
	GeocodingTier geocoding.Tier      `json:"geocoding_tier"`
	Cuisine       string              `json:"cuisine"`
	PriceRange    PriceRange          `json:"price_range" validate:"oneof=$ $$ $$$ $$$$"`
	Rating        *float64            `json:"rating,omitempty" validate:"omitnil,gte=0,lte=5"`
	ReviewCount   *int                `json:"review_count,omitempty" validate:"omitnil,gte=0"`
	PhoneNumber   string              `json:"phone_number,omitempty"`
	Website       string              `json:"website,omitempty"`
	Source        Source              `json:"source" validate:"oneof=vision-extracted manual"`
	Tags          []string            `json:"tags"`
	DateAdded     time.Time           `json:"date_added"`
	IsVisited     bool                `json:"is_visited"`
	VisitedDate   *time.Time          `json:"visited_date,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid restaurant")

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the record invariants.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}

	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalid, r.Name, err)
	}

	if err := r.Coordinates.Validate(); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalid, r.Name, err)
	}

	if r.IsVisited != (r.VisitedDate != nil) {
		return fmt.Errorf("%w %q: visited date must be set iff visited", ErrInvalid, r.Name)
	}

	return nil
}

// Normalize fills defaults and cleans free-text fields in place.
func (r *Record) Normalize() {
	r.Name = strings.TrimSpace(r.Name)

	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		r.Address = AddressPlaceholder
	}

	r.Cuisine = strings.TrimSpace(r.Cuisine)
	if r.Cuisine == "" {
		r.Cuisine = DefaultCuisine
	}

	if r.PriceRange == "" {
		r.PriceRange = DefaultPriceRange
	}

	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Website = strings.TrimSpace(r.Website)
	r.Tags = textutils.NormalizeTags(r.Tags)
}

// SetVisited updates the visited flag keeping VisitedDate consistent. A record
// that is already visited keeps its original date.
func (r *Record) SetVisited(visited bool, now time.Time) {
	switch {
	case visited && !r.IsVisited:
		t := now
		r.VisitedDate = &t
	case !visited:
		r.VisitedDate = nil
	}

	r.IsVisited = visited
}

// Patch is a partial update. Nil fields are left untouched. DateAdded and ID
// cannot be patched.
type Patch struct {
	Name          *string              `json:"name,omitempty"`
	Address       *string              `json:"address,omitempty"`
	Coordinates   *spatial.Coordinates `json:"coordinates,omitempty"`
	GeocodingTier *geocoding.Tier      `json:"geocoding_tier,omitempty"`
	Cuisine       *string              `json:"cuisine,omitempty"`
	PriceRange    *PriceRange          `json:"price_range,omitempty"`
	Rating        *float64             `json:"rating,omitempty"`
	PhoneNumber   *string              `json:"phone_number,omitempty"`
	Website       *string              `json:"website,omitempty"`
	Tags          *[]string            `json:"tags,omitempty"`
	IsVisited     *bool                `json:"is_visited,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
}

// Apply returns a copy of r with the patch applied.
func (p Patch) Apply(r Record, now time.Time) Record {
	if p.Name != nil {
		r.Name = *p.Name
	}

	if p.Address != nil {
		r.Address = *p.Address
	}

	if p.Coordinates != nil {
		r.Coordinates = *p.Coordinates

		r.GeocodingTier = geocoding.TierManual
	}

	if p.GeocodingTier != nil {
		r.GeocodingTier = *p.GeocodingTier
	}

	if p.Cuisine != nil {
		r.Cuisine = *p.Cuisine
	}

	if p.PriceRange != nil {
		r.PriceRange = *p.PriceRange
	}

	if p.Rating != nil {
		rating := *p.Rating
		r.Rating = &rating
	}

	if p.PhoneNumber != nil {
		r.PhoneNumber = *p.PhoneNumber
	}

	if p.Website != nil {
		r.Website = *p.Website
	}

	if p.Tags != nil {
		r.Tags = append([]string(nil), (*p.Tags)...)
	}

	if p.IsVisited != nil {
		r.SetVisited(*p.IsVisited, now)
	}

	if p.Notes != nil {
		r.Notes = *p.Notes
	}

	r.Normalize()

	return r
}
