// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rules applies a fixed, data-driven rule set to aggregated
// metrics and latest readings to decide alert state transitions.
//
// # Description
//
// Each rule is an (alert_type, predicate, severity) triple evaluated
// independently per field. A field may have several alert types active at
// once but never two active instances of the same type; that invariant is
// enforced downstream by the alert stream, the evaluator only emits
// decisions. The evaluator itself never fails: a rule whose required
// input is missing this cycle is simply not evaluated, which is neither a
// breach nor a clear.
//
// # Severity Tie-Break
//
// Rules with several threshold bands (soil moisture: warning under 15%,
// critical under 12%) resolve to the most severe band that matches.
package rules

import (
	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// Alert type identifiers for the built-in rule set. These match the
// advisory rule IDs stored in the treatment graph.
const (
	AlertLowSoilMoisture = "low_soil_moisture"
	AlertLowNDVI         = "low_ndvi"
	AlertAdaptiveGrazing = "adaptive_grazing"
	AlertLimeApplication = "lime_application"
	AlertNitrogen        = "nitrogen_application"
	AlertReseedingSlope  = "reseeding_steep_slopes"
)

// Thresholds for the built-in rules.
const (
	SoilMoistureWarnPct     = 15.0
	SoilMoistureCriticalPct = 12.0
	NDVIWarnLevel           = 0.5
	NDVITrendCritical       = -0.15 // 14-day slope, index units per day
	NDVITrendReseedWarn     = -0.05
	GrassHeightLowCm        = 6.0
	SoilPHLimeLevel         = 5.8
	SoilNitrogenLowPpm      = 30.0
	SteepSlopeDegrees       = 10.0
)

// Inputs carries everything a predicate may inspect for one field in one
// cycle. Latest maps metric type to the most recent good-quality reading;
// a metric with no reading this cycle is absent from the map.
type Inputs struct {
	Field     datatypes.Field
	Snapshots datatypes.SnapshotSet
	Latest    map[string]datatypes.Reading
}

// Verdict is a predicate's raw outcome before it becomes a decision.
type Verdict struct {
	// Missing marks the rule as not evaluated this cycle because a
	// required input (snapshot window, latest reading) was absent.
	Missing bool

	// Breached is true when the rule's condition held.
	Breached bool

	// Value is the observed measurement, Threshold the boundary it is
	// compared against, Severity the matched band. Meaningful only when
	// Breached is true.
	Value     float64
	Threshold float64
	Severity  datatypes.Severity
}

// Predicate inspects one field's inputs and returns a verdict.
type Predicate func(in Inputs) Verdict

// Rule pairs an alert type with its predicate.
type Rule struct {
	AlertType   string
	Description string
	Predicate   Predicate
}

// Band is one severity tier of a lower-bound threshold rule.
type Band struct {
	Severity  datatypes.Severity
	Threshold float64
}

// BelowBands builds a predicate that breaches when the latest reading of
// metricType drops below a band's threshold. Bands are checked most
// severe first so the tie-break favors the higher severity.
func BelowBands(metricType string, bands ...Band) Predicate {
	return func(in Inputs) Verdict {
		r, ok := in.Latest[metricType]
		if !ok {
			return Verdict{Missing: true}
		}
		for _, b := range bands {
			if r.Value < b.Threshold {
				return Verdict{
					Breached:  true,
					Value:     r.Value,
					Threshold: b.Threshold,
					Severity:  b.Severity,
				}
			}
		}
		return Verdict{}
	}
}

// DefaultRules returns the built-in rule set. The set mirrors the
// advisory rules seeded into the treatment graph. Order is stable.
func DefaultRules() []Rule {
	return []Rule{
		{
			AlertType:   AlertLowSoilMoisture,
			Description: "soil moisture below irrigation threshold",
			Predicate: BelowBands(datatypes.MetricSoilMoisture,
				Band{Severity: datatypes.SeverityCritical, Threshold: SoilMoistureCriticalPct},
				Band{Severity: datatypes.SeverityWarning, Threshold: SoilMoistureWarnPct},
			),
		},
		{
			AlertType:   AlertLowNDVI,
			Description: "vegetation index below forage-quality floor",
			Predicate: BelowBands(datatypes.MetricNDVI,
				Band{Severity: datatypes.SeverityWarning, Threshold: NDVIWarnLevel},
			),
		},
		{
			AlertType:   AlertAdaptiveGrazing,
			Description: "sustained NDVI decline with short sward",
			Predicate:   adaptiveGrazingPredicate,
		},
		{
			AlertType:   AlertLimeApplication,
			Description: "acidic soil needs lime",
			Predicate:   limePredicate,
		},
		{
			AlertType:   AlertNitrogen,
			Description: "soil nitrogen below agronomic minimum",
			Predicate: BelowBands(datatypes.MetricSoilNitrogen,
				Band{Severity: datatypes.SeverityWarning, Threshold: SoilNitrogenLowPpm},
			),
		},
		{
			AlertType:   AlertReseedingSlope,
			Description: "NDVI loss pattern on a steep slope",
			Predicate:   reseedingPredicate,
		},
	}
}

// adaptiveGrazingPredicate fires critical when the 14-day NDVI slope is
// below NDVITrendCritical while the latest grass height is under
// GrassHeightLowCm. Both inputs are required.
func adaptiveGrazingPredicate(in Inputs) Verdict {
	trend, ok := in.Snapshots.Get(datatypes.MetricNDVI, datatypes.Window14d)
	if !ok {
		return Verdict{Missing: true}
	}
	height, ok := in.Latest[datatypes.MetricGrassHeight]
	if !ok {
		return Verdict{Missing: true}
	}

	if trend.TrendSlope < NDVITrendCritical && height.Value < GrassHeightLowCm {
		return Verdict{
			Breached:  true,
			Value:     trend.TrendSlope,
			Threshold: NDVITrendCritical,
			Severity:  datatypes.SeverityCritical,
		}
	}
	return Verdict{}
}

// limePredicate prefers the latest in-field pH reading and falls back to
// the catalog's lab-measured soil pH. With neither available the verdict
// is missing, not healthy: a data gap must never retire a live alert.
func limePredicate(in Inputs) Verdict {
	ph := in.Field.SoilPH
	if r, ok := in.Latest[datatypes.MetricSoilPH]; ok {
		ph = r.Value
	}
	if ph <= 0 {
		return Verdict{Missing: true}
	}

	if ph < SoilPHLimeLevel {
		return Verdict{
			Breached:  true,
			Value:     ph,
			Threshold: SoilPHLimeLevel,
			Severity:  datatypes.SeverityWarning,
		}
	}
	return Verdict{}
}

// reseedingPredicate fires on steep-slope fields whose 14-day NDVI trend
// shows a loss pattern. Slope comes from catalog metadata, the trend from
// the snapshot set.
func reseedingPredicate(in Inputs) Verdict {
	if in.Field.Terrain.SlopeDegrees <= SteepSlopeDegrees {
		return Verdict{}
	}
	trend, ok := in.Snapshots.Get(datatypes.MetricNDVI, datatypes.Window14d)
	if !ok {
		return Verdict{Missing: true}
	}

	if trend.TrendSlope < NDVITrendReseedWarn {
		return Verdict{
			Breached:  true,
			Value:     trend.TrendSlope,
			Threshold: NDVITrendReseedWarn,
			Severity:  datatypes.SeverityWarning,
		}
	}
	return Verdict{}
}
