// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"testing"
	"time"
)

func TestWindowString(t *testing.T) {
	if got := Window7d.String(); got != "7d" {
		t.Errorf("Window7d.String() = %q, want %q", got, "7d")
	}
	if got := Window30d.String(); got != "30d" {
		t.Errorf("Window30d.String() = %q, want %q", got, "30d")
	}
}

func TestSnapshotSet_AddGet(t *testing.T) {
	set := make(SnapshotSet)
	snap := AggregateSnapshot{
		FieldID:    "field_001_01",
		MetricType: MetricNDVI,
		Window:     Window14d,
		Mean:       0.62,
		ComputedAt: time.Now(),
	}
	set.Add(snap)

	got, ok := set.Get(MetricNDVI, Window14d)
	if !ok {
		t.Fatal("snapshot not found after Add")
	}
	if got.Mean != 0.62 {
		t.Errorf("Mean = %v, want 0.62", got.Mean)
	}

	if _, ok := set.Get(MetricNDVI, Window30d); ok {
		t.Error("Get should miss for a window that was never added")
	}
	if _, ok := set.Get(MetricSoilPH, Window14d); ok {
		t.Error("Get should miss for a metric that was never added")
	}
}

func TestSeverityRoundTrip(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical} {
		if got := ParseSeverity(sev.String()); got != sev {
			t.Errorf("ParseSeverity(%q) = %v, want %v", sev.String(), got, sev)
		}
	}
	if got := ParseSeverity("nonsense"); got != SeverityInfo {
		t.Errorf("unknown severity should parse as info, got %v", got)
	}
}

func TestErrorClasses(t *testing.T) {
	err := InputUnavailable("influx", errors.New("connection refused"))
	if !errors.Is(err, ErrInputUnavailable) {
		t.Error("InputUnavailable should wrap ErrInputUnavailable")
	}

	werr := WriteFailure("redis", errors.New("timeout"))
	if !errors.Is(werr, ErrWriteFailure) {
		t.Error("WriteFailure should wrap ErrWriteFailure")
	}

	cfg := NewConfigError("rules", "rule %q has no predicate", "low_ndvi")
	if !IsConfigError(cfg) {
		t.Error("IsConfigError should detect ConfigError")
	}
	if IsConfigError(err) {
		t.Error("IsConfigError should not match other error classes")
	}
}
