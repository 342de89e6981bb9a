// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the restaurant store and the ingestion pipeline over
// HTTP for mobile clients.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"
	"github.com/snapbite/snapbite/ingest"
	"github.com/snapbite/snapbite/restaurant"
	"github.com/snapbite/snapbite/spatial"
)

// DefaultNearbyRadiusKm is used when radius_km is not given.
const DefaultNearbyRadiusKm = 5.0

// Ingester is satisfied by *ingest.Pipeline.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (ingest.Result, error)
}

// Server serves the HTTP API.
type Server struct {
	repo     restaurant.Repository
	ingester Ingester
	locator  restaurant.Locator
}

// NewServer creates a Server. locator may be nil, in which case position
// dependent endpoints require lat and lng parameters.
func NewServer(repo restaurant.Repository, ingester Ingester, locator restaurant.Locator) *Server {
	return &Server{repo: repo, ingester: ingester, locator: locator}
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		entry := log.Info()
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			entry = log.Error()
		}

		entry.Str("method", ctx.Request.Method).
			Str("path", ctx.FullPath()).
			Int("status", ctx.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/health", s.health)
	r.POST("/api/restaurants/ingest", s.ingest)
	r.GET("/api/restaurants", s.listRestaurants)
	r.GET("/api/restaurants/nearby", s.nearby)
	r.GET("/api/restaurants/:id", s.getRestaurant)
	r.PATCH("/api/restaurants/:id", s.patchRestaurant)
	r.DELETE("/api/restaurants/:id", s.deleteRestaurant)
	r.GET("/api/alerts", s.alerts)
	r.GET("/api/export.geojson", s.exportGeoJSON)

	return r
}

func (s *Server) health(ctx *gin.Context) {
	n, err := s.repo.Count(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "restaurants": n})
}

func (s *Server) ingest(ctx *gin.Context) {
	var in ingest.Input
	if err := ctx.ShouldBindJSON(&in); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})

		return
	}

	res, err := s.ingester.Ingest(ctx.Request.Context(), in)
	if err != nil {
		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "field": validationErr.Field})

			return
		}

		log.Error().Err(err).Msg("ingestion failed")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add restaurant"})

		return
	}

	switch res.Outcome {
	case ingest.Created:
		ctx.JSON(http.StatusCreated, res.Record)
	case ingest.DuplicateRejected:
		ctx.JSON(http.StatusConflict, gin.H{
			"error":     "this looks like a duplicate",
			"candidate": res.Record,
			"duplicate": res.Duplicate,
		})
	case ingest.NeedsManualEntry:
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "please enter details manually"})
	}
}

func (s *Server) listRestaurants(ctx *gin.Context) {
	records, err := s.repo.Search(ctx.Request.Context(), ctx.Query("q"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if records == nil {
		records = []*restaurant.Record{}
	}

	ctx.JSON(http.StatusOK, records)
}

func (s *Server) getRestaurant(ctx *gin.Context) {
	rec, err := s.repo.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		s.storeError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, rec)
}

func (s *Server) patchRestaurant(ctx *gin.Context) {
	var patch restaurant.Patch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})

		return
	}

	rec, err := s.repo.Update(ctx.Request.Context(), ctx.Param("id"), patch)
	if err != nil {
		s.storeError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, rec)
}

func (s *Server) deleteRestaurant(ctx *gin.Context) {
	if err := s.repo.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		s.storeError(ctx, err)

		return
	}

	ctx.Status(http.StatusNoContent)
}

func (s *Server) storeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, restaurant.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, restaurant.ErrInvalid):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// position reads lat and lng from the query, falling back to the locator.
func (s *Server) position(ctx *gin.Context) (spatial.Coordinates, error) {
	latParam, lngParam := ctx.Query("lat"), ctx.Query("lng")

	if latParam == "" && lngParam == "" {
		if s.locator == nil {
			return spatial.Coordinates{}, errors.New("lat and lng query parameters are required")
		}

		return s.locator.CurrentPosition(ctx.Request.Context())
	}

	lat, err := strconv.ParseFloat(latParam, 64)
	if err != nil {
		return spatial.Coordinates{}, errors.New("invalid lat parameter")
	}

	lng, err := strconv.ParseFloat(lngParam, 64)
	if err != nil {
		return spatial.Coordinates{}, errors.New("invalid lng parameter")
	}

	c := spatial.Coordinates{Latitude: lat, Longitude: lng}

	return c, c.Validate()
}

func (s *Server) nearby(ctx *gin.Context) {
	center, err := s.position(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	radiusKm := DefaultNearbyRadiusKm

	if param := ctx.Query("radius_km"); param != "" {
		radiusKm, err = strconv.ParseFloat(param, 64)
		if err != nil || radiusKm <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km parameter"})

			return
		}
	}

	records, err := s.repo.Nearby(ctx.Request.Context(), center, radiusKm*1000)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if records == nil {
		records = []restaurant.WithDistance{}
	}

	ctx.JSON(http.StatusOK, records)
}

func (s *Server) alerts(ctx *gin.Context) {
	position, err := s.position(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	records, err := s.repo.Nearby(ctx.Request.Context(), position, restaurant.ProximityAlertRadiusMeters)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	plain := make([]*restaurant.Record, len(records))
	for i, r := range records {
		plain[i] = r.Record
	}

	alerts := restaurant.ProximityAlerts(position, plain)
	if alerts == nil {
		alerts = []restaurant.Alert{}
	}

	ctx.JSON(http.StatusOK, alerts)
}

func (s *Server) exportGeoJSON(ctx *gin.Context) {
	records, err := s.repo.List(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Header("Content-Type", "application/geo+json")
	ctx.JSON(http.StatusOK, restaurant.ToFeatureCollection(records))
}
