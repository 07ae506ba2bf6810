// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kenan7/nosql-pasture/pkg/validation"
	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// Risk scoring weights. A field scores against its cached 7-day means;
// any nonzero score marks it at risk.
const (
	riskNDVIBelow      = 0.5
	riskMoistureBelow  = 15.0
	riskTempAbove      = 30.0
	riskGrassBelow     = 6.0
	riskWeightNDVI     = 3
	riskWeightMoisture = 2
	riskWeightTemp     = 1
	riskWeightGrass    = 2
)

// AtRiskField is one scored entry of the at-risk report.
type AtRiskField struct {
	FieldID     string             `json:"field_id"`
	Name        string             `json:"name"`
	SoilType    string             `json:"soil_type"`
	RiskScore   int                `json:"risk_score"`
	RiskFactors []string           `json:"risk_factors"`
	Metrics     map[string]float64 `json:"metrics"`
}

// AtRiskFields scores every cataloged field against its cached 7-day
// means and returns the at-risk ones, highest score first. Fields with
// no cached metrics are skipped; they have nothing to score.
func AtRiskFields(catalog stores.FieldCatalog, cache stores.MetricsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := fieldsTracer.Start(c.Request.Context(), "AtRiskFields")
		defer span.End()

		fields, err := catalog.Fields(ctx)
		if err != nil {
			slog.Error("Field list failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
			return
		}

		var out []AtRiskField
		for _, field := range fields {
			set, err := cache.Get(ctx, field.FieldID)
			if errors.Is(err, datatypes.ErrNotFound) {
				continue
			}
			if err != nil {
				slog.Error("Metrics cache read failed", "field_id", field.FieldID, "error", err)
				continue
			}
			if entry, atRisk := scoreField(field, set); atRisk {
				out = append(out, entry)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
		c.JSON(http.StatusOK, gin.H{"at_risk": out, "count": len(out)})
	}
}

func scoreField(field datatypes.Field, set datatypes.SnapshotSet) (AtRiskField, bool) {
	entry := AtRiskField{
		FieldID:  field.FieldID,
		Name:     field.Name,
		SoilType: field.SoilType,
		Metrics:  make(map[string]float64),
	}

	mean := func(metricType string) (float64, bool) {
		snap, ok := set.Get(metricType, datatypes.Window7d)
		if !ok {
			return 0, false
		}
		entry.Metrics[metricType] = snap.Mean
		return snap.Mean, true
	}

	if v, ok := mean(datatypes.MetricNDVI); ok && v < riskNDVIBelow {
		entry.RiskScore += riskWeightNDVI
		entry.RiskFactors = append(entry.RiskFactors, fmt.Sprintf("Low NDVI (%.2f)", v))
	}
	if v, ok := mean(datatypes.MetricSoilMoisture); ok && v < riskMoistureBelow {
		entry.RiskScore += riskWeightMoisture
		entry.RiskFactors = append(entry.RiskFactors, fmt.Sprintf("Low soil moisture (%.1f%%)", v))
	}
	if v, ok := mean(datatypes.MetricTemperature); ok && v > riskTempAbove {
		entry.RiskScore += riskWeightTemp
		entry.RiskFactors = append(entry.RiskFactors, fmt.Sprintf("High temperature (%.1fC)", v))
	}
	if v, ok := mean(datatypes.MetricGrassHeight); ok && v < riskGrassBelow {
		entry.RiskScore += riskWeightGrass
		entry.RiskFactors = append(entry.RiskFactors, fmt.Sprintf("Low grass height (%.1fcm)", v))
	}
	return entry, entry.RiskScore > 0
}

// ScheduleMaintenanceRequest schedules one piece of field work.
type ScheduleMaintenanceRequest struct {
	FieldID string    `json:"field_id" binding:"required"`
	Task    string    `json:"task" binding:"required"`
	Due     time.Time `json:"due" binding:"required"`
}

// ScheduleMaintenance adds an entry to the maintenance schedule.
func ScheduleMaintenance(schedule stores.MaintenanceSchedule) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScheduleMaintenanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
		if err := validation.ValidateFieldID(req.FieldID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field id", "details": err.Error()})
			return
		}
		if err := schedule.Schedule(c.Request.Context(), req.FieldID, req.Task, req.Due); err != nil {
			slog.Error("Maintenance schedule write failed", "field_id", req.FieldID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "schedule unavailable"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "scheduled"})
	}
}

// DueMaintenance lists work due within the next N hours (default 168).
func DueMaintenance(schedule stores.MaintenanceSchedule, clock stores.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		hours := 168
		if raw := c.Query("hours"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
				return
			}
			hours = v
		}
		cutoff := clock.Now().Add(time.Duration(hours) * time.Hour)
		items, err := schedule.DueBefore(c.Request.Context(), cutoff)
		if err != nil {
			slog.Error("Maintenance schedule read failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "schedule unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
	}
}

// CompleteMaintenanceRequest marks scheduled work as done.
type CompleteMaintenanceRequest struct {
	FieldID string `json:"field_id" binding:"required"`
	Task    string `json:"task" binding:"required"`
}

// CompleteMaintenance removes a (field, task) pair from the schedule.
// Completing work that was never scheduled reports completed=false
// rather than an error.
func CompleteMaintenance(schedule stores.MaintenanceSchedule) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompleteMaintenanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
		removed, err := schedule.Complete(c.Request.Context(), req.FieldID, req.Task)
		if err != nil {
			slog.Error("Maintenance completion failed", "field_id", req.FieldID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "schedule unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"completed": removed})
	}
}
