// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest turns a screenshot or manually entered fields into a stored,
// geolocated, non-duplicate restaurant.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/spatial"
	"github.com/snapbite/snapbite/vision"
)

// Outcome is the user-visible result of an ingestion.
type Outcome int

const (
	// Created means the restaurant was stored.
	Created Outcome = iota
	// DuplicateRejected means the restaurant matched a stored one and was
	// not stored.
	DuplicateRejected
	// NeedsManualEntry means the image could not be read; the caller should
	// ask for the fields and ingest again.
	NeedsManualEntry
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case DuplicateRejected:
		return "duplicate"
	case NeedsManualEntry:
		return "needs_manual_entry"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ManualFields are entered by the user. Coordinates, when set, skip
// geocoding.
type ManualFields struct {
	Name        string               `json:"name"`
	Address     string               `json:"address"`
	Cuisine     string               `json:"cuisine"`
	PriceRange  string               `json:"price_range"`
	Rating      *float64             `json:"rating,omitempty"`
	ReviewCount *int                 `json:"review_count,omitempty"`
	PhoneNumber string               `json:"phone_number"`
	Website     string               `json:"website"`
	Coordinates *spatial.Coordinates `json:"coordinates,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	Notes       string               `json:"notes,omitempty"`
}

// Input is either a base64 image, manual fields, or both. With both, the
// manual fields are used only when the image cannot be read; tags and notes
// are always kept.
type Input struct {
	ImageBase64 string        `json:"image_base64,omitempty"`
	Manual      *ManualFields `json:"manual,omitempty"`
}

// Result describes what Ingest did.
type Result struct {
	Outcome Outcome

	// Record is the stored restaurant for Created, the rejected candidate
	// for DuplicateRejected and nil for NeedsManualEntry.
	Record *restaurant.Record

	// Duplicate is the stored restaurant that caused a rejection.
	Duplicate *restaurant.Record

	// Geocoding tells how the coordinates were obtained, including absorbed
	// provider failures.
	Geocoding geocoding.Resolution
}

// ValidationError reports bad user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AddressResolver resolves addresses; *geocoding.Resolver satisfies it.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) geocoding.Resolution
}

// Store is the part of restaurant.Repository the pipeline needs.
type Store interface {
	InsertIfNotDuplicate(ctx context.Context, r *restaurant.Record) (*restaurant.Record, error)
}

// Pipeline runs extraction, geocoding, deduplication and persistence, in
// that order.
type Pipeline struct {
	analyzer      vision.Analyzer
	resolver      AddressResolver
	store         Store
	now           func() time.Time
	newID         func() string
	visionTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock used for DateAdded.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithIDGenerator overrides restaurant.NewID.
func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) {
		p.newID = newID
	}
}

// WithVisionTimeout bounds the extraction call.
func WithVisionTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.visionTimeout = d
	}
}

// New creates a Pipeline. analyzer may be nil, in which case every image
// needs manual entry.
func New(analyzer vision.Analyzer, resolver AddressResolver, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:      analyzer,
		resolver:      resolver,
		store:         store,
		now:           time.Now,
		newID:         restaurant.NewID,
		visionTimeout: vision.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Pipeline) extract(ctx context.Context, image string) *vision.RestaurantData {
	if p.analyzer == nil {
		log.Warn().Msg("no vision provider configured, image needs manual entry")

		return nil
	}

	if p.visionTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.visionTimeout)
		defer cancel()
	}

	return vision.Extract(ctx, p.analyzer, image)
}

// fromVision maps extracted data onto a candidate. Values the model got
// wrong fall back to defaults instead of failing the ingestion.
func fromVision(data *vision.RestaurantData) *restaurant.Record {
	price, err := restaurant.ParsePriceRange(data.PriceRange)
	if err != nil {
		log.Debug().Str("price_range", data.PriceRange).Msg("ignoring extracted price range")

		price = restaurant.DefaultPriceRange
	}

	return &restaurant.Record{
		Name:        data.Name,
		Address:     data.Address,
		Cuisine:     data.Cuisine,
		PriceRange:  price,
		Rating:      data.Rating,
		ReviewCount: data.ReviewCount,
		PhoneNumber: data.PhoneNumber,
		Website:     data.Website,
		Source:      restaurant.SourceVision,
	}
}

func fromManual(m *ManualFields) (*restaurant.Record, error) {
	price, err := restaurant.ParsePriceRange(m.PriceRange)
	if err != nil {
		return nil, &ValidationError{Field: "price_range", Message: err.Error()}
	}

	if m.Rating != nil && (*m.Rating < 0 || *m.Rating > 5) {
		return nil, &ValidationError{Field: "rating", Message: "rating must be between 0 and 5"}
	}

	if m.ReviewCount != nil && *m.ReviewCount < 0 {
		return nil, &ValidationError{Field: "review_count", Message: "review count must not be negative"}
	}

	return &restaurant.Record{
		Name:        m.Name,
		Address:     m.Address,
		Cuisine:     m.Cuisine,
		PriceRange:  price,
		Rating:      m.Rating,
		ReviewCount: m.ReviewCount,
		PhoneNumber: m.PhoneNumber,
		Website:     m.Website,
		Source:      restaurant.SourceManual,
	}, nil
}

// Ingest runs the pipeline. Only *ValidationError, store failures and
// context cancellation are returned as errors; duplicates and unreadable
// images are outcomes.
func (p *Pipeline) Ingest(ctx context.Context, in Input) (Result, error) {
	var candidate *restaurant.Record

	if strings.TrimSpace(in.ImageBase64) != "" {
		if data := p.extract(ctx, in.ImageBase64); data != nil {
			candidate = fromVision(data)
		} else if in.Manual == nil {
			return Result{Outcome: NeedsManualEntry}, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var manualCoords *spatial.Coordinates

	if in.Manual != nil {
		if candidate == nil {
			var err error
			if candidate, err = fromManual(in.Manual); err != nil {
				return Result{}, err
			}

			manualCoords = in.Manual.Coordinates
		}

		candidate.Tags = in.Manual.Tags
		candidate.Notes = strings.TrimSpace(in.Manual.Notes)
	}

	if candidate == nil || strings.TrimSpace(candidate.Name) == "" {
		return Result{}, &ValidationError{Field: "name", Message: "name required"}
	}

	var res geocoding.Resolution

	if manualCoords != nil {
		if err := manualCoords.Validate(); err != nil {
			return Result{}, &ValidationError{Field: "coordinates", Message: err.Error()}
		}

		res = geocoding.Resolution{Coordinates: *manualCoords, Tier: geocoding.TierManual, Provider: "manual"}
	} else {
		res = p.resolver.Resolve(ctx, candidate.Address)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	candidate.ID = p.newID()
	candidate.Coordinates = res.Coordinates
	candidate.GeocodingTier = res.Tier
	candidate.DateAdded = p.now()
	candidate.Normalize()

	if err := candidate.Validate(); err != nil {
		return Result{}, &ValidationError{Field: "restaurant", Message: err.Error()}
	}

	dup, err := p.store.InsertIfNotDuplicate(ctx, candidate)
	if err != nil {
		return Result{}, fmt.Errorf("storing restaurant %q: %w", candidate.Name, err)
	}

	if dup != nil {
		log.Info().Str("name", candidate.Name).Str("duplicate_of", dup.ID).Str("duplicate_name", dup.Name).Msg("duplicate restaurant rejected")

		return Result{Outcome: DuplicateRejected, Record: candidate, Duplicate: dup, Geocoding: res}, nil
	}

	log.Info().Str("id", candidate.ID).Str("name", candidate.Name).Str("source", string(candidate.Source)).Str("tier", string(res.Tier)).Msg("restaurant added")

	return Result{Outcome: Created, Record: candidate, Geocoding: res}, nil
}
