// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the records exchanged between the aggregation
// pipeline stages and the external stores. Loosely-shaped store rows are
// converted into these tagged records at the boundary where they enter the
// pipeline; nothing downstream handles raw maps.
package datatypes

import (
	"fmt"
	"time"
)

// Metric type constants for the sensor channels tracked per field.
const (
	MetricTemperature    = "temperature"     // Celsius
	MetricHumidity       = "humidity"        // percent
	MetricSoilMoisture   = "soil_moisture"   // percent
	MetricPrecipitation  = "precipitation"   // mm
	MetricWindSpeed      = "wind_speed"      // m/s
	MetricSolarRadiation = "solar_radiation" // W/m2
	MetricGrassHeight    = "grass_height"    // cm
	MetricNDVI           = "ndvi"            // 0-1 vegetation index
	MetricSoilPH         = "soil_ph"         // pH
	MetricSoilNitrogen   = "soil_nitrogen"   // ppm
	MetricSoilPhosphorus = "soil_phosphorus" // ppm
	MetricSoilPotassium  = "soil_potassium"  // ppm
)

// MetricTypes lists every tracked sensor channel. Order is stable and is
// used by the seed loader and the per-cycle read loop.
var MetricTypes = []string{
	MetricTemperature,
	MetricHumidity,
	MetricSoilMoisture,
	MetricPrecipitation,
	MetricWindSpeed,
	MetricSolarRadiation,
	MetricGrassHeight,
	MetricNDVI,
	MetricSoilPH,
	MetricSoilNitrogen,
	MetricSoilPhosphorus,
	MetricSoilPotassium,
}

// Quality flag values for sensor readings.
const (
	QualityBad  = 0
	QualityGood = 1
)

// RetentionHorizon is how long the time-series store keeps raw readings.
// Reads requesting older data are silently truncated to this horizon.
const RetentionHorizon = 90 * 24 * time.Hour

// Reading is a single raw sensor measurement. Immutable once written,
// ordered by timestamp descending within a field partition.
type Reading struct {
	FieldID    string    `json:"field_id"`
	SensorID   string    `json:"sensor_id"`
	MetricType string    `json:"metric_type"`
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Quality    int       `json:"quality_flag"`
}

// Valid reports whether the reading passed sensor-side quality checks.
// Bad-quality readings are excluded before computing aggregates.
func (r Reading) Valid() bool {
	return r.Quality == QualityGood
}

// Window is a trailing time span over which rolling statistics are
// recomputed each cycle.
type Window time.Duration

// The three windows the aggregator computes each cycle.
const (
	Window7d  = Window(7 * 24 * time.Hour)
	Window14d = Window(14 * 24 * time.Hour)
	Window30d = Window(30 * 24 * time.Hour)
)

// DefaultWindows is the window set computed per cycle, shortest first.
var DefaultWindows = []Window{Window7d, Window14d, Window30d}

// Duration returns the window as a time.Duration.
func (w Window) Duration() time.Duration {
	return time.Duration(w)
}

// String renders a window as a day count, e.g. "14d".
func (w Window) String() string {
	days := int(time.Duration(w).Hours() / 24)
	if days <= 0 {
		return time.Duration(w).String()
	}
	return fmt.Sprintf("%dd", days)
}

// AggregateSnapshot is the derived rolling statistic for one metric over
// one window. Recomputed each cycle; only the latest snapshot per
// (field_id, metric_type) is retained in the cache.
type AggregateSnapshot struct {
	FieldID     string    `json:"field_id"`
	MetricType  string    `json:"metric_type"`
	Window      Window    `json:"window"`
	Mean        float64   `json:"mean"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	TrendSlope  float64   `json:"trend_slope"` // value units per day
	SampleCount int       `json:"sample_count"`
	ComputedAt  time.Time `json:"computed_at"`
}

// SnapshotSet holds every snapshot computed for one field in one cycle,
// keyed by metric type then window. A Put to the metrics cache replaces
// the entire set atomically.
type SnapshotSet map[string]map[Window]AggregateSnapshot

// Get returns the snapshot for a metric and window, if present.
func (s SnapshotSet) Get(metricType string, w Window) (AggregateSnapshot, bool) {
	byWindow, ok := s[metricType]
	if !ok {
		return AggregateSnapshot{}, false
	}
	snap, ok := byWindow[w]
	return snap, ok
}

// Add inserts a snapshot, allocating the inner map as needed.
func (s SnapshotSet) Add(snap AggregateSnapshot) {
	byWindow, ok := s[snap.MetricType]
	if !ok {
		byWindow = make(map[Window]AggregateSnapshot, len(DefaultWindows))
		s[snap.MetricType] = byWindow
	}
	byWindow[snap.Window] = snap
}

// Severity classifies an alert. Ordering matters: when one alert type's
// predicate is satisfiable at several bands in the same cycle, the most
// severe classification wins.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns "info", "warning", or "critical".
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// ParseSeverity maps the wire form back to a Severity. Unknown strings
// map to SeverityInfo.
func ParseSeverity(s string) Severity {
	switch s {
	case "critical":
		return SeverityCritical
	case "warning":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// AlertStatus is the lifecycle state of an alert log entry.
type AlertStatus string

const (
	AlertActive  AlertStatus = "active"
	AlertCleared AlertStatus = "cleared"
)

// AlertEvent is one entry in the append-only alert log.
//
// Invariant: at most one active entry per (FieldID, AlertType) exists at
// any time. A new breach while one is active is deduplicated; a return to
// normal appends a cleared event for the matching active entry.
type AlertEvent struct {
	ID        string      `json:"id"`
	FieldID   string      `json:"field_id"`
	AlertType string      `json:"alert_type"`
	Value     float64     `json:"value"`
	Threshold float64     `json:"threshold"`
	Severity  Severity    `json:"severity"`
	RaisedAt  time.Time   `json:"raised_at"`
	Status    AlertStatus `json:"status"`
}

// DecisionKind discriminates the three evaluator outcomes per rule.
type DecisionKind int

const (
	// DecisionNoChange means the rule evaluated and found no transition,
	// or its required input was missing this cycle.
	DecisionNoChange DecisionKind = iota

	// DecisionRaise means the rule's breach predicate held.
	DecisionRaise

	// DecisionClear means the rule's input was present and healthy, so
	// any matching active alert should be cleared.
	DecisionClear
)

// AlertDecision is one evaluator outcome for one alert type. Raise
// decisions carry the observed value, the breached threshold, and the
// severity band that matched.
type AlertDecision struct {
	Kind      DecisionKind
	AlertType string
	Value     float64
	Threshold float64
	Severity  Severity
}

// Terrain describes a field's physical profile. Slope influences which
// advisory rules apply.
type Terrain struct {
	ElevationM   int     `json:"elevation_m" bson:"elevation_m"`
	SlopeDegrees float64 `json:"slope_degrees" bson:"slope_degrees"`
	Aspect       string  `json:"aspect" bson:"aspect"`
}

// GeoPoint is a GeoJSON point, longitude first.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// GeoPolygon is a GeoJSON polygon ring set, longitude first.
type GeoPolygon struct {
	Type        string        `json:"type" bson:"type"`
	Coordinates [][][]float64 `json:"coordinates" bson:"coordinates"`
}

// Centroid returns the mean vertex of the outer ring, longitude first.
// ok is false when the boundary is empty or malformed. Good enough for
// proximity queries over paddock-sized polygons.
func (p GeoPolygon) Centroid() (lon, lat float64, ok bool) {
	if len(p.Coordinates) == 0 || len(p.Coordinates[0]) == 0 {
		return 0, 0, false
	}
	ring := p.Coordinates[0]
	for _, pt := range ring {
		if len(pt) < 2 {
			return 0, 0, false
		}
		lon += pt[0]
		lat += pt[1]
	}
	n := float64(len(ring))
	return lon / n, lat / n, true
}

// Field is the metadata record for a bounded land parcel. Owned by the
// metadata store; read-only input to the threshold evaluator.
type Field struct {
	FieldID      string     `json:"field_id" bson:"field_id"`
	FarmID       string     `json:"farm_id" bson:"farm_id"`
	Name         string     `json:"name" bson:"name"`
	Boundary     GeoPolygon `json:"boundary" bson:"boundary"`
	AreaHectares float64    `json:"area_hectares" bson:"area_hectares"`
	SoilType     string     `json:"soil_type" bson:"soil_type"`
	SoilPH       float64    `json:"soil_ph" bson:"soil_ph"`
	Terrain      Terrain    `json:"terrain" bson:"terrain"`
	Species      []string   `json:"current_species" bson:"current_species"`
}

// Farm groups fields under one operation.
type Farm struct {
	FarmID            string   `json:"farm_id" bson:"farm_id"`
	Name              string   `json:"name" bson:"name"`
	Location          GeoPoint `json:"location" bson:"location"`
	TotalAreaHectares float64  `json:"total_area_hectares" bson:"total_area_hectares"`
	EstablishedDate   string   `json:"established_date" bson:"established_date"`
}

// TreatmentEvent records an intervention applied to a field (fertilizer,
// irrigation, ...). Written to the metadata store and mirrored into the
// treatment graph.
type TreatmentEvent struct {
	EventID   string         `json:"event_id" bson:"event_id"`
	FieldID   string         `json:"field_id" bson:"field_id"`
	EventType string         `json:"event_type" bson:"event_type"`
	EventDate time.Time      `json:"event_date" bson:"event_date"`
	Details   map[string]any `json:"details" bson:"details"`
}

// AdvisoryRule is a graph-store record linking agronomic conditions to a
// recommended action. Created once at seed time.
type AdvisoryRule struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Conditions  string `json:"conditions"`
	Action      string `json:"action"`
}
