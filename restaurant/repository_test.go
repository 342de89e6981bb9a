// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		reviews := 321
		rec := newRecord("Pizzeria A", sanFrancisco)
		rec.ReviewCount = &reviews
		rec.PhoneNumber = "+1 415 555 0100"
		rec.Notes = "ask for the corner table"
		rec.DateAdded = testNow.Add(123456789 * time.Nanosecond)

		require.NoError(t, repo.Insert(ctx, rec))

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)

		if diff := cmp.Diff(rec, got); diff != "" {
			t.Errorf("Get() mismatch (-want +got):\n%s", diff)
		}

		assert.Equal(t, testNow.Add(123456*time.Microsecond), got.DateAdded)
	})
}

func TestGetNotFound(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		_, err := repo.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), ErrNotFound)
	})
}

func TestInsertRejectsInvalid(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		rec := newRecord("", sanFrancisco)

		require.Error(t, repo.Insert(context.Background(), rec))

		n, err := repo.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestInsertIfNotDuplicate(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		first := newRecord("Pizzeria A", spatial.Coordinates{Latitude: 37.7, Longitude: -122.4})

		dup, err := repo.InsertIfNotDuplicate(ctx, first)
		require.NoError(t, err)
		require.Nil(t, dup)

		again := newRecord("Pizzeria B", metersNorth(first.Coordinates, 50))

		dup, err = repo.InsertIfNotDuplicate(ctx, again)
		require.NoError(t, err)
		require.NotNil(t, dup)
		assert.Equal(t, first.ID, dup.ID)

		other := newRecord("Pizzeria B", metersNorth(first.Coordinates, 1_000))

		dup, err = repo.InsertIfNotDuplicate(ctx, other)
		require.NoError(t, err)
		assert.Nil(t, dup)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestInsertIfNotDuplicateConcurrent(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		const workers = 8

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			inserted int
		)

		for i := range workers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				// same venue, slightly different coordinates and names
				rec := newRecord("Joe's Pizza", metersNorth(sanFrancisco, float64(i)))

				dup, err := repo.InsertIfNotDuplicate(ctx, rec)
				assert.NoError(t, err)

				if err == nil && dup == nil {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, inserted)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestUpdateVisitedAndNotes(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		rec := newRecord("Pizzeria A", sanFrancisco)
		require.NoError(t, repo.Insert(ctx, rec))

		visited := true
		notes := "try the calzone"
		tags := []string{"Date night", "pizza", "PIZZA"}

		updated, err := repo.Update(ctx, rec.ID, Patch{IsVisited: &visited, Notes: &notes, Tags: &tags})
		require.NoError(t, err)
		assert.True(t, updated.IsVisited)
		require.NotNil(t, updated.VisitedDate)
		assert.Equal(t, testNow, *updated.VisitedDate)

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)

		if diff := cmp.Diff(updated, got); diff != "" {
			t.Errorf("Get() after Update mismatch (-want +got):\n%s", diff)
		}

		assert.Equal(t, []string{"Date night", "pizza"}, got.Tags)
		assert.Equal(t, rec.DateAdded, got.DateAdded)

		visited = false

		got, err = repo.Update(ctx, rec.ID, Patch{IsVisited: &visited})
		require.NoError(t, err)
		assert.False(t, got.IsVisited)
		assert.Nil(t, got.VisitedDate)
		assert.Equal(t, "try the calzone", got.Notes)
	})
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		rec := newRecord("Pizzeria A", sanFrancisco)
		require.NoError(t, repo.Insert(ctx, rec))

		rating := 9.0

		_, err := repo.Update(ctx, rec.ID, Patch{Rating: &rating})
		require.Error(t, err)

		got, err := repo.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.InDelta(t, 4.2, *got.Rating, 1e-9)

		_, err = repo.Update(ctx, "missing", Patch{Rating: &rating})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		rec := newRecord("Pizzeria A", sanFrancisco)
		require.NoError(t, repo.Insert(ctx, rec))
		require.NoError(t, repo.Delete(ctx, rec.ID))

		_, err := repo.Get(ctx, rec.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNearby(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		records := []*Record{
			newRecord("At 300m", metersNorth(sanFrancisco, 300)),
			newRecord("At 50m", metersNorth(sanFrancisco, 50)),
			newRecord("At 900m", metersNorth(sanFrancisco, 900)),
			newRecord("At 30km", metersNorth(sanFrancisco, 30_000)),
		}
		for _, r := range records {
			require.NoError(t, repo.Insert(ctx, r))
		}

		got, err := repo.Nearby(ctx, sanFrancisco, 1_000)
		require.NoError(t, err)

		names := make([]string, len(got))
		for i, r := range got {
			names[i] = r.Name
		}

		assert.Equal(t, []string{"At 50m", "At 300m", "At 900m"}, names)

		got, err = repo.Nearby(ctx, sanFrancisco, 50_000)
		require.NoError(t, err)
		assert.Len(t, got, 4)

		_, err = repo.Nearby(ctx, spatial.Coordinates{Latitude: 100}, 1_000)
		assert.Error(t, err)
	})
}

func TestSearch(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		cafe := newRecord("Café Réveille", metersNorth(sanFrancisco, 1_000))
		cafe.Cuisine = "Coffee"
		cafe.Tags = []string{"brunch"}

		sushi := newRecord("Sushi Zen", metersNorth(sanFrancisco, 2_000))
		sushi.Cuisine = "Japanese"
		sushi.Address = "Geary Blvd"
		sushi.Tags = nil

		for _, r := range []*Record{cafe, sushi} {
			require.NoError(t, repo.Insert(ctx, r))
		}

		for query, want := range map[string][]string{
			"cafe":     {"Café Réveille"},
			"JAPANESE": {"Sushi Zen"},
			"geary":    {"Sushi Zen"},
			"Brunch":   {"Café Réveille"},
			"":         {"Café Réveille", "Sushi Zen"},
			"tacos":    nil,
		} {
			got, err := repo.Search(ctx, query)
			require.NoError(t, err)

			var names []string
			for _, r := range got {
				names = append(names, r.Name)
			}

			assert.ElementsMatch(t, want, names, "query %q", query)
		}
	})
}

func TestListByTier(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		fallback := newRecord("Unknown Place", metersNorth(sanFrancisco, 3_000))
		fallback.GeocodingTier = geocoding.TierDefault

		require.NoError(t, repo.Insert(ctx, newRecord("Pizzeria A", sanFrancisco)))
		require.NoError(t, repo.Insert(ctx, fallback))

		got, err := repo.ListByTier(ctx, geocoding.TierDefault)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, fallback.ID, got[0].ID)
	})
}
