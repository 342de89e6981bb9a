// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/spatial"
	"github.com/snapbite/snapbite/utils/textutils"
	"github.com/uber/h3-go/v4"
)

// ErrNotFound is returned when no restaurant has the requested id.
var ErrNotFound = errors.New("restaurant not found")

// maxIndexedRadius is the largest radius answered through the H3 index;
// larger searches scan the table.
const maxIndexedRadius = 5_000.0

// Repository is the restaurant store.
type Repository interface {
	// CreateSchema creates the restaurants table
	CreateSchema(ctx context.Context) error

	// List returns every restaurant, newest first
	List(ctx context.Context) ([]*Record, error)

	// Get returns the restaurant with the given id or ErrNotFound
	Get(ctx context.Context, id string) (*Record, error)

	// Insert stores a new restaurant without any duplicate check
	Insert(ctx context.Context, r *Record) error

	// InsertIfNotDuplicate atomically checks r against the stored restaurants
	// and inserts it when unique. It returns the conflicting restaurant, or
	// nil when r was inserted.
	InsertIfNotDuplicate(ctx context.Context, r *Record) (*Record, error)

	// Update applies a patch and returns the updated restaurant
	Update(ctx context.Context, id string, patch Patch) (*Record, error)

	// Delete removes the restaurant permanently
	Delete(ctx context.Context, id string) error

	// Nearby returns restaurants within radius meters of center, closest first
	Nearby(ctx context.Context, center spatial.Coordinates, radius float64) ([]WithDistance, error)

	// Search matches query against name, cuisine, address and tags
	Search(ctx context.Context, query string) ([]*Record, error)

	// ListByTier returns restaurants whose coordinates came from tier
	ListByTier(ctx context.Context, tier geocoding.Tier) ([]*Record, error)

	// Count returns the number of stored restaurants
	Count(ctx context.Context) (int, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlRepository struct {
	db  *sql.DB
	now func() time.Time

	// serializes the read-check-write of InsertIfNotDuplicate and Update
	mu sync.Mutex
}

// RepositoryOption configures NewRepository.
type RepositoryOption func(*sqlRepository)

// WithClock overrides the clock used for visited dates.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *sqlRepository) {
		r.now = now
	}
}

// NewRepository creates a repository over a duckdb or sqlite database.
func NewRepository(db *sql.DB, opts ...RepositoryOption) Repository {
	r := &sqlRepository{db: db, now: time.Now}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *sqlRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS restaurants (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			address VARCHAR NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			h3_cell BIGINT NOT NULL,
			geocoding_tier VARCHAR NOT NULL,
			cuisine VARCHAR NOT NULL,
			price_range VARCHAR NOT NULL,
			rating DOUBLE,
			review_count BIGINT,
			phone_number VARCHAR NOT NULL,
			website VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			tags VARCHAR NOT NULL,
			date_added TIMESTAMP NOT NULL,
			is_visited BOOLEAN NOT NULL,
			visited_date TIMESTAMP,
			notes VARCHAR NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating restaurants table: %w", err)
	}

	return nil
}

const selectColumns = `
	SELECT id, name, address, latitude, longitude, geocoding_tier, cuisine,
	       price_range, rating, review_count, phone_number, website, source,
	       tags, date_added, is_visited, visited_date, notes
	FROM restaurants`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec         Record
		tier        string
		priceRange  string
		source      string
		tags        string
		rating      sql.NullFloat64
		reviewCount sql.NullInt64
		visitedDate sql.NullTime
	)

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Address,
		&rec.Coordinates.Latitude,
		&rec.Coordinates.Longitude,
		&tier,
		&rec.Cuisine,
		&priceRange,
		&rating,
		&reviewCount,
		&rec.PhoneNumber,
		&rec.Website,
		&source,
		&tags,
		&rec.DateAdded,
		&rec.IsVisited,
		&visitedDate,
		&rec.Notes,
	)
	if err != nil {
		return nil, err
	}

	rec.GeocodingTier = geocoding.Tier(tier)
	rec.PriceRange = PriceRange(priceRange)
	rec.Source = Source(source)
	rec.DateAdded = rec.DateAdded.UTC()

	if rating.Valid {
		rec.Rating = &rating.Float64
	}

	if reviewCount.Valid {
		n := int(reviewCount.Int64)
		rec.ReviewCount = &n
	}

	if visitedDate.Valid {
		t := visitedDate.Time.UTC()
		rec.VisitedDate = &t
	}

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of %s: %w", rec.ID, err)
	}

	return &rec, nil
}

func list(ctx context.Context, q querier, query string, args ...any) ([]*Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying restaurants: %w", err)
	}
	defer rows.Close()

	var records []*Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning restaurant: %w", err)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func get(ctx context.Context, q querier, id string) (*Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("getting restaurant %s: %w", id, err)
	}

	return rec, nil
}

// dbTime drops the monotonic reading and the precision neither database keeps.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

type rowValues struct {
	cell        int64
	tags        string
	rating      sql.NullFloat64
	reviewCount sql.NullInt64
	visitedDate sql.NullTime
}

func prepare(rec *Record) (rowValues, error) {
	var v rowValues

	if err := rec.Validate(); err != nil {
		return v, err
	}

	cell, err := rec.Coordinates.Cell(spatial.CellResolution)
	if err != nil {
		return v, err
	}

	v.cell = int64(cell) // #nosec G115 - h3 indexes never set the high bit

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}

	raw, err := json.Marshal(tags)
	if err != nil {
		return v, fmt.Errorf("encoding tags: %w", err)
	}

	v.tags = string(raw)

	if rec.Rating != nil {
		v.rating = sql.NullFloat64{Float64: *rec.Rating, Valid: true}
	}

	if rec.ReviewCount != nil {
		v.reviewCount = sql.NullInt64{Int64: int64(*rec.ReviewCount), Valid: true}
	}

	if rec.VisitedDate != nil {
		v.visitedDate = sql.NullTime{Time: dbTime(*rec.VisitedDate), Valid: true}
	}

	return v, nil
}

func insert(ctx context.Context, q querier, rec *Record) error {
	rec.DateAdded = dbTime(rec.DateAdded)

	v, err := prepare(rec)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO restaurants (
			id, name, address, latitude, longitude, h3_cell, geocoding_tier,
			cuisine, price_range, rating, review_count, phone_number, website,
			source, tags, date_added, is_visited, visited_date, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Name,
		rec.Address,
		rec.Coordinates.Latitude,
		rec.Coordinates.Longitude,
		v.cell,
		string(rec.GeocodingTier),
		rec.Cuisine,
		string(rec.PriceRange),
		v.rating,
		v.reviewCount,
		rec.PhoneNumber,
		rec.Website,
		string(rec.Source),
		v.tags,
		rec.DateAdded,
		rec.IsVisited,
		v.visitedDate,
		rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("inserting restaurant %q: %w", rec.Name, err)
	}

	return nil
}

func (r *sqlRepository) List(ctx context.Context) ([]*Record, error) {
	return list(ctx, r.db, selectColumns+` ORDER BY date_added DESC, id`)
}

func (r *sqlRepository) Get(ctx context.Context, id string) (*Record, error) {
	return get(ctx, r.db, id)
}

func (r *sqlRepository) Insert(ctx context.Context, rec *Record) error {
	return insert(ctx, r.db, rec)
}

// rollback is deferred after BeginTx; it is a no-op once committed.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}

func (r *sqlRepository) InsertIfNotDuplicate(ctx context.Context, rec *Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	existing, err := list(ctx, tx, selectColumns)
	if err != nil {
		return nil, err
	}

	if dup := FindDuplicate(rec, existing); dup != nil {
		return dup, nil
	}

	if err := insert(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing restaurant %q: %w", rec.Name, err)
	}

	return nil, nil
}

func (r *sqlRepository) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	current, err := get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*current, r.now())

	v, err := prepare(&updated)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE restaurants
		SET name = ?, address = ?, latitude = ?, longitude = ?, h3_cell = ?,
		    geocoding_tier = ?, cuisine = ?, price_range = ?, rating = ?,
		    phone_number = ?, website = ?, tags = ?, is_visited = ?,
		    visited_date = ?, notes = ?
		WHERE id = ?`,
		updated.Name,
		updated.Address,
		updated.Coordinates.Latitude,
		updated.Coordinates.Longitude,
		v.cell,
		string(updated.GeocodingTier),
		updated.Cuisine,
		string(updated.PriceRange),
		v.rating,
		updated.PhoneNumber,
		updated.Website,
		v.tags,
		updated.IsVisited,
		v.visitedDate,
		updated.Notes,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating restaurant %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update of %s: %w", id, err)
	}

	if updated.VisitedDate != nil {
		t := dbTime(*updated.VisitedDate)
		updated.VisitedDate = &t
	}

	return &updated, nil
}

func (r *sqlRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM restaurants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting restaurant %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting restaurant %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

func (r *sqlRepository) Nearby(ctx context.Context, center spatial.Coordinates, radius float64) ([]WithDistance, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	var (
		candidates []*Record
		err        error
	)

	if radius > maxIndexedRadius {
		candidates, err = list(ctx, r.db, selectColumns)
	} else {
		var cells []h3.Cell

		cells, err = center.CellsWithin(radius)
		if err != nil {
			return nil, err
		}

		placeholders := make([]string, len(cells))
		args := make([]any, len(cells))

		for i, cell := range cells {
			placeholders[i] = "?"
			args[i] = int64(cell) // #nosec G115 - h3 indexes never set the high bit
		}

		candidates, err = list(ctx, r.db, selectColumns+` WHERE h3_cell IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	}

	if err != nil {
		return nil, err
	}

	var out []WithDistance

	for _, rec := range SortByDistance(center, candidates) {
		if rec.Distance > radius {
			break
		}

		out = append(out, rec)
	}

	return out, nil
}

func (r *sqlRepository) Search(ctx context.Context, query string) ([]*Record, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return records, nil
	}

	var matches []*Record

	for _, rec := range records {
		if matchesQuery(rec, query) {
			matches = append(matches, rec)
		}
	}

	return matches, nil
}

func matchesQuery(rec *Record, query string) bool {
	for _, field := range []string{rec.Name, rec.Cuisine, rec.Address} {
		if textutils.ContainsFolded(field, query) {
			return true
		}
	}

	for _, tag := range rec.Tags {
		if textutils.ContainsFolded(tag, query) {
			return true
		}
	}

	return false
}

func (r *sqlRepository) ListByTier(ctx context.Context, tier geocoding.Tier) ([]*Record, error) {
	return list(ctx, r.db, selectColumns+` WHERE geocoding_tier = ? ORDER BY date_added`, string(tier))
}

func (r *sqlRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting restaurants: %w", err)
	}

	return n, nil
}
