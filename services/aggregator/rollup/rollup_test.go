// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rollup

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

func reading(ts time.Time, value float64, quality int) datatypes.Reading {
	return datatypes.Reading{
		FieldID:    "field_001_01",
		MetricType: datatypes.MetricGrassHeight,
		Timestamp:  ts,
		Value:      value,
		Quality:    quality,
	}
}

// TestAggregate_WindowCorrectness checks that evenly spaced increasing
// readings produce the expected mean and a positive slope.
func TestAggregate_WindowCorrectness(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	readings := []datatypes.Reading{
		reading(now.Add(-4*24*time.Hour), 10, datatypes.QualityGood),
		reading(now.Add(-2*24*time.Hour), 20, datatypes.QualityGood),
		reading(now, 30, datatypes.QualityGood),
	}

	result := Aggregate("field_001_01", datatypes.MetricGrassHeight, readings, now, []datatypes.Window{datatypes.Window7d})

	snap, ok := result[datatypes.Window7d]
	if !ok {
		t.Fatal("7d window missing from result")
	}
	if math.Abs(snap.Mean-20) > 1e-9 {
		t.Errorf("Mean = %v, want 20", snap.Mean)
	}
	if snap.TrendSlope <= 0 {
		t.Errorf("TrendSlope = %v, want > 0", snap.TrendSlope)
	}
	// 10 units over 4 days
	if math.Abs(snap.TrendSlope-5) > 1e-9 {
		t.Errorf("TrendSlope = %v, want 5 units/day", snap.TrendSlope)
	}
	if snap.Min != 10 || snap.Max != 30 {
		t.Errorf("Min/Max = %v/%v, want 10/30", snap.Min, snap.Max)
	}
	if snap.SampleCount != 3 {
		t.Errorf("SampleCount = %d, want 3", snap.SampleCount)
	}
}

// TestAggregate_InsufficientDataSkip checks that a window with no data is
// absent while shorter windows with data are still produced.
func TestAggregate_InsufficientDataSkip(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	// Both readings inside 7d; nothing between 14d and 30d boundaries
	// changes the outcome for the 30d window because these two are the
	// only points anywhere.
	readings := []datatypes.Reading{
		reading(now.Add(-24*time.Hour), 12.0, datatypes.QualityGood),
		reading(now.Add(-48*time.Hour), 14.0, datatypes.QualityGood),
	}

	result := Aggregate("field_001_01", datatypes.MetricGrassHeight, readings, now, datatypes.DefaultWindows)

	if _, ok := result[datatypes.Window7d]; !ok {
		t.Error("7d snapshot should be present")
	}
	if _, ok := result[datatypes.Window14d]; !ok {
		t.Error("14d snapshot should be present")
	}
	// 30d window also contains both points, so it is present too. Now
	// check a truly empty window set.
	empty := Aggregate("field_001_01", datatypes.MetricGrassHeight, nil, now, datatypes.DefaultWindows)
	if len(empty) != 0 {
		t.Errorf("expected no snapshots for empty input, got %d", len(empty))
	}

	one := Aggregate("field_001_01", datatypes.MetricGrassHeight,
		[]datatypes.Reading{reading(now, 5, datatypes.QualityGood)}, now, datatypes.DefaultWindows)
	if len(one) != 0 {
		t.Errorf("a single reading is below MinSamples, got %d snapshots", len(one))
	}
}

// TestWindowStats_OldReadingsExcluded checks the window boundary: points
// older than now-W never contribute.
func TestWindowStats_OldReadingsExcluded(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	readings := []datatypes.Reading{
		reading(now.Add(-1*24*time.Hour), 10, datatypes.QualityGood),
		reading(now.Add(-2*24*time.Hour), 10, datatypes.QualityGood),
		reading(now.Add(-20*24*time.Hour), 1000, datatypes.QualityGood), // outside 7d
	}

	snap, err := WindowStats("field_001_01", datatypes.MetricGrassHeight, readings, now, datatypes.Window7d)
	if err != nil {
		t.Fatalf("WindowStats returned error: %v", err)
	}
	if snap.Mean != 10 {
		t.Errorf("Mean = %v, want 10 (old reading leaked into window)", snap.Mean)
	}
	if snap.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", snap.SampleCount)
	}
}

// TestWindowStats_QualityFiltering checks that bad-quality readings are
// excluded before statistics are computed.
func TestWindowStats_QualityFiltering(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	readings := []datatypes.Reading{
		reading(now.Add(-1*time.Hour), 10, datatypes.QualityGood),
		reading(now.Add(-2*time.Hour), 20, datatypes.QualityGood),
		reading(now.Add(-3*time.Hour), 9999, datatypes.QualityBad),
	}

	snap, err := WindowStats("field_001_01", datatypes.MetricGrassHeight, readings, now, datatypes.Window7d)
	if err != nil {
		t.Fatalf("WindowStats returned error: %v", err)
	}
	if snap.Mean != 15 {
		t.Errorf("Mean = %v, want 15 (bad reading included)", snap.Mean)
	}
}

// TestWindowStats_InsufficientDataError checks the sentinel error class.
func TestWindowStats_InsufficientDataError(t *testing.T) {
	now := time.Now()
	_, err := WindowStats("field_001_01", datatypes.MetricNDVI, nil, now, datatypes.Window30d)
	if err == nil {
		t.Fatal("expected error for empty window")
	}
	if !errors.Is(err, datatypes.ErrInsufficientData) {
		t.Errorf("error should wrap ErrInsufficientData, got %v", err)
	}
}

// TestWindowStats_IdenticalTimestamps checks that the slope degrades to 0
// when all points share a timestamp instead of dividing by zero.
func TestWindowStats_IdenticalTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-time.Hour)
	readings := []datatypes.Reading{
		reading(ts, 10, datatypes.QualityGood),
		reading(ts, 30, datatypes.QualityGood),
	}

	snap, err := WindowStats("field_001_01", datatypes.MetricGrassHeight, readings, now, datatypes.Window7d)
	if err != nil {
		t.Fatalf("WindowStats returned error: %v", err)
	}
	if snap.TrendSlope != 0 {
		t.Errorf("TrendSlope = %v, want 0 for identical timestamps", snap.TrendSlope)
	}
	if snap.Mean != 20 {
		t.Errorf("Mean = %v, want 20", snap.Mean)
	}
}

// TestAggregate_Deterministic checks that the same input always yields the
// same snapshots regardless of input ordering.
func TestAggregate_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	a := []datatypes.Reading{
		reading(now.Add(-1*24*time.Hour), 0.61, datatypes.QualityGood),
		reading(now.Add(-3*24*time.Hour), 0.64, datatypes.QualityGood),
		reading(now.Add(-5*24*time.Hour), 0.70, datatypes.QualityGood),
	}
	b := []datatypes.Reading{a[2], a[0], a[1]} // shuffled

	ra := Aggregate("field_001_01", datatypes.MetricNDVI, a, now, datatypes.DefaultWindows)
	rb := Aggregate("field_001_01", datatypes.MetricNDVI, b, now, datatypes.DefaultWindows)

	for w, sa := range ra {
		sb, ok := rb[w]
		if !ok {
			t.Fatalf("window %s missing from shuffled result", w)
		}
		if sa.Mean != sb.Mean || sa.TrendSlope != sb.TrendSlope || sa.Min != sb.Min || sa.Max != sb.Max {
			t.Errorf("window %s: snapshots differ between orderings: %+v vs %+v", w, sa, sb)
		}
	}
}

