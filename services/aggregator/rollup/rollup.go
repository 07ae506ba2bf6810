// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rollup computes rolling window statistics over sensor readings.
//
// # Description
//
// For each configured trailing window (7/14/30 days) the package computes
// the arithmetic mean, min/max, and a least-squares trend slope of a
// metric's readings. Everything here is a pure function of its inputs:
// identical reading sets always yield identical snapshots, which is what
// makes pipeline re-runs idempotent.
//
// # Quality Filtering
//
// Readings whose quality flag marks them invalid are dropped before any
// statistic is computed. A window with fewer than MinSamples remaining
// points is skipped, not an error for the cycle.
package rollup

import (
	"fmt"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// MinSamples is the minimum number of good-quality readings a window
// needs before its snapshot is computed.
const MinSamples = 2

// Aggregate computes one snapshot per window from a single metric's
// readings.
//
// # Description
//
// Only readings with timestamp >= now-W contribute to window W. Windows
// with fewer than MinSamples good readings are omitted from the result
// map; callers treat a missing window as "skip", never as a cycle
// failure. Input order does not matter.
//
// # Inputs
//
//   - fieldID: partition key recorded on each snapshot.
//   - metricType: sensor channel recorded on each snapshot.
//   - readings: raw readings, any order, any quality.
//   - now: reference instant for window boundaries and ComputedAt.
//   - windows: window set to compute, e.g. datatypes.DefaultWindows.
//
// # Outputs
//
//   - map[Window]AggregateSnapshot: one entry per window that had enough
//     data. Never nil.
func Aggregate(fieldID, metricType string, readings []datatypes.Reading, now time.Time, windows []datatypes.Window) map[datatypes.Window]datatypes.AggregateSnapshot {
	result := make(map[datatypes.Window]datatypes.AggregateSnapshot, len(windows))

	for _, w := range windows {
		snap, err := WindowStats(fieldID, metricType, readings, now, w)
		if err != nil {
			// Insufficient data for this window only; others may
			// still have enough.
			continue
		}
		result[w] = snap
	}

	return result
}

// WindowStats computes the snapshot for a single window.
//
// Returns datatypes.ErrInsufficientData (wrapped) when fewer than
// MinSamples good-quality readings fall inside the window.
func WindowStats(fieldID, metricType string, readings []datatypes.Reading, now time.Time, w datatypes.Window) (datatypes.AggregateSnapshot, error) {
	cutoff := now.Add(-w.Duration())

	var inWindow []datatypes.Reading
	for _, r := range readings {
		if !r.Valid() {
			continue
		}
		if r.Timestamp.Before(cutoff) || r.Timestamp.After(now) {
			continue
		}
		inWindow = append(inWindow, r)
	}

	if len(inWindow) < MinSamples {
		return datatypes.AggregateSnapshot{}, fmt.Errorf("%w: %s/%s window %s has %d of %d required points",
			datatypes.ErrInsufficientData, fieldID, metricType, w, len(inWindow), MinSamples)
	}

	var sum float64
	minVal := inWindow[0].Value
	maxVal := inWindow[0].Value
	for _, r := range inWindow {
		sum += r.Value
		if r.Value < minVal {
			minVal = r.Value
		}
		if r.Value > maxVal {
			maxVal = r.Value
		}
	}

	return datatypes.AggregateSnapshot{
		FieldID:     fieldID,
		MetricType:  metricType,
		Window:      w,
		Mean:        sum / float64(len(inWindow)),
		Min:         minVal,
		Max:         maxVal,
		TrendSlope:  trendSlope(inWindow, cutoff),
		SampleCount: len(inWindow),
		ComputedAt:  now,
	}, nil
}

// trendSlope fits value = a + b*t by ordinary least squares, where t is
// elapsed days since the window start. Returns b in value units per day,
// or 0 when fewer than 2 distinct timestamps exist.
func trendSlope(readings []datatypes.Reading, windowStart time.Time) float64 {
	n := float64(len(readings))
	if len(readings) < 2 {
		return 0
	}

	distinct := false
	first := readings[0].Timestamp
	for _, r := range readings[1:] {
		if !r.Timestamp.Equal(first) {
			distinct = true
			break
		}
	}
	if !distinct {
		return 0
	}

	var sumT, sumV, sumTV, sumTT float64
	for _, r := range readings {
		t := r.Timestamp.Sub(windowStart).Hours() / 24
		sumT += t
		sumV += r.Value
		sumTV += t * r.Value
		sumTT += t * t
	}

	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return 0
	}
	return (n*sumTV - sumT*sumV) / denom
}
