// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snapbite/snapbite/geocoding"
	"github.com/snapbite/snapbite/ingest"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sanFrancisco = spatial.Coordinates{Latitude: 37.7749, Longitude: -122.4194}

type fixedResolver struct{}

func (fixedResolver) Resolve(context.Context, string) geocoding.Resolution {
	return geocoding.Resolution{Coordinates: sanFrancisco, Tier: geocoding.TierPrimary}
}

type stubIngester struct {
	res ingest.Result
	err error
}

func (s stubIngester) Ingest(context.Context, ingest.Input) (ingest.Result, error) {
	return s.res, s.err
}

func setupServerTest(t *testing.T, ingester Ingester, locator restaurant.Locator) (*gin.Engine, restaurant.Repository) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, repo, err := restaurant.Open(context.Background(), restaurant.DriverDuckDB, "")
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	if ingester == nil {
		ingester = ingest.New(nil, fixedResolver{}, repo)
	}

	return NewServer(repo, ingester, locator).Router(), repo
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func seed(t *testing.T, repo restaurant.Repository, name string, c spatial.Coordinates) *restaurant.Record {
	t.Helper()

	rec := &restaurant.Record{
		ID:            restaurant.NewID(),
		Name:          name,
		Coordinates:   c,
		GeocodingTier: geocoding.TierPrimary,
		Source:        restaurant.SourceManual,
		DateAdded:     time.Now(),
	}
	rec.Normalize()
	require.NoError(t, repo.Insert(context.Background(), rec))

	return rec
}

func TestHealth(t *testing.T) {
	router, _ := setupServerTest(t, nil, nil)

	w := do(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","restaurants":0}`, w.Body.String())
}

func TestIngestManualCreatesAndRejectsDuplicate(t *testing.T) {
	router, repo := setupServerTest(t, nil, nil)

	body := ingest.Input{Manual: &ingest.ManualFields{Name: "Pizzeria A", Address: "1 Market St"}}

	w := do(t, router, http.MethodPost, "/api/restaurants/ingest", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created restaurant.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Pizzeria A", created.Name)
	assert.Equal(t, restaurant.SourceManual, created.Source)

	w = do(t, router, http.MethodPost, "/api/restaurants/ingest", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		ingester Ingester
		body     string
		want     int
	}{
		{"validation", nil, `{"manual":{"name":""}}`, http.StatusBadRequest},
		{"bad json", nil, `{"manual":`, http.StatusBadRequest},
		{"needs manual entry", stubIngester{res: ingest.Result{Outcome: ingest.NeedsManualEntry}}, `{"image_base64":"abc"}`, http.StatusUnprocessableEntity},
		{"store failure", stubIngester{err: errors.New("disk full")}, `{"manual":{"name":"x"}}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupServerTest(t, tt.ingester, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/restaurants/ingest", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRestaurantCRUD(t *testing.T) {
	router, repo := setupServerTest(t, nil, nil)
	rec := seed(t, repo, "Sushi Zen", sanFrancisco)

	w := do(t, router, http.MethodGet, "/api/restaurants/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPatch, "/api/restaurants/"+rec.ID, map[string]any{"is_visited": true, "notes": "omakase"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated restaurant.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.IsVisited)
	assert.NotNil(t, updated.VisitedDate)
	assert.Equal(t, "omakase", updated.Notes)

	w = do(t, router, http.MethodPatch, "/api/restaurants/"+rec.ID, map[string]any{"rating": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/restaurants?q=sushi", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var found []restaurant.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)

	w = do(t, router, http.MethodGet, "/api/restaurants?q=tacos", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, router, http.MethodDelete, "/api/restaurants/"+rec.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/api/restaurants/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodDelete, "/api/restaurants/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNearbyAndAlerts(t *testing.T) {
	router, repo := setupServerTest(t, nil, restaurant.StaticLocator(sanFrancisco))

	seed(t, repo, "Close", spatial.Coordinates{Latitude: 37.7758, Longitude: -122.4194})
	seed(t, repo, "Across Town", spatial.Coordinates{Latitude: 37.7949, Longitude: -122.4194})

	w := do(t, router, http.MethodGet, "/api/restaurants/nearby?lat=37.7749&lng=-122.4194&radius_km=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var nearby []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nearby))
	require.Len(t, nearby, 1)
	assert.Equal(t, "Close", nearby[0]["name"])
	assert.InDelta(t, 100, nearby[0]["distance"], 1)

	// falls back to the locator
	w = do(t, router, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var alerts []restaurant.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "Close is 100m away", alerts[0].Message)

	w = do(t, router, http.MethodGet, "/api/restaurants/nearby?lat=north&lng=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/restaurants/nearby?lat=1&lng=1&radius_km=-2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertsWithoutLocator(t *testing.T) {
	router, _ := setupServerTest(t, nil, nil)

	w := do(t, router, http.MethodGet, "/api/alerts", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportGeoJSON(t *testing.T) {
	router, repo := setupServerTest(t, nil, nil)
	seed(t, repo, "Pizzeria A", sanFrancisco)

	w := do(t, router, http.MethodGet, "/api/export.geojson", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"FeatureCollection"`)
}
