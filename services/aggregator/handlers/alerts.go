// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kenan7/nosql-pasture/pkg/validation"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// RecentAlerts returns the newest entries of the alert log, raised and
// cleared alike.
func RecentAlerts(alerts stores.AlertStream) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = v
		}

		events, err := alerts.Recent(c.Request.Context(), limit)
		if err != nil {
			slog.Error("Alert log read failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert stream unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": events, "count": len(events)})
	}
}

// ActiveAlerts returns a field's currently active alerts.
func ActiveAlerts(alerts stores.AlertStream) gin.HandlerFunc {
	return func(c *gin.Context) {
		fieldID := c.Param("field_id")
		if err := validation.ValidateFieldID(fieldID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id", "details": err.Error()})
			return
		}
		events, err := alerts.Active(c.Request.Context(), fieldID)
		if err != nil {
			slog.Error("Active alert read failed", "field_id", fieldID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert stream unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"field_id": fieldID, "alerts": events, "count": len(events)})
	}
}
