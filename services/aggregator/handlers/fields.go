// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/Kenan7/nosql-pasture/pkg/validation"
	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

var fieldsTracer = otel.Tracer("pasture.aggregator.handlers")

// FieldMetricsResponse is the cached snapshot set for one field, keyed
// by metric type then window label.
type FieldMetricsResponse struct {
	FieldID string                                             `json:"field_id"`
	Metrics map[string]map[string]datatypes.AggregateSnapshot `json:"metrics"`
}

// ListFields returns every cataloged field.
func ListFields(catalog stores.FieldCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields, err := catalog.Fields(c.Request.Context())
		if err != nil {
			slog.Error("Field list failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"fields": fields, "count": len(fields)})
	}
}

// GetField returns one field's catalog record.
func GetField(catalog stores.FieldCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		fieldID := c.Param("field_id")
		if err := validation.ValidateFieldID(fieldID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id", "details": err.Error()})
			return
		}
		field, err := catalog.Field(c.Request.Context(), fieldID)
		if errors.Is(err, datatypes.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "field not found"})
			return
		}
		if err != nil {
			slog.Error("Field lookup failed", "field_id", fieldID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
			return
		}
		c.JSON(http.StatusOK, field)
	}
}

// GetFieldMetrics serves the cached aggregate snapshots for one field.
// A miss means the field either never aggregated or aged out of the
// cache; both are a 404, not an error.
func GetFieldMetrics(cache stores.MetricsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := fieldsTracer.Start(c.Request.Context(), "GetFieldMetrics")
		defer span.End()

		fieldID := c.Param("field_id")
		if err := validation.ValidateFieldID(fieldID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id", "details": err.Error()})
			return
		}

		set, err := cache.Get(ctx, fieldID)
		if errors.Is(err, datatypes.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cached metrics for field"})
			return
		}
		if err != nil {
			slog.Error("Metrics cache read failed", "field_id", fieldID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
			return
		}

		resp := FieldMetricsResponse{
			FieldID: fieldID,
			Metrics: make(map[string]map[string]datatypes.AggregateSnapshot, len(set)),
		}
		for metricType, byWindow := range set {
			resp.Metrics[metricType] = make(map[string]datatypes.AggregateSnapshot, len(byWindow))
			for w, snap := range byWindow {
				resp.Metrics[metricType][w.String()] = snap
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// NearbyFields returns fields within max_meters of a point.
func NearbyFields(catalog stores.FieldCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		if lonErr != nil || latErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lon and lat query parameters are required"})
			return
		}
		maxMeters := 10000.0
		if raw := c.Query("max_meters"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "max_meters must be a positive number"})
				return
			}
			maxMeters = v
		}

		fields, err := catalog.Nearby(c.Request.Context(), lon, lat, maxMeters)
		if err != nil {
			slog.Error("Nearby query failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"fields": fields, "count": len(fields)})
	}
}
