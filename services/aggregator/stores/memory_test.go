// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func alertEvent(fieldID, alertType string) datatypes.AlertEvent {
	return datatypes.AlertEvent{
		ID:        fieldID + "/" + alertType,
		FieldID:   fieldID,
		AlertType: alertType,
		Value:     9.2,
		Threshold: 12.0,
		Severity:  datatypes.SeverityCritical,
		RaisedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemorySeriesStoreReadNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeriesStore()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var batch []datatypes.Reading
	for i := 0; i < 5; i++ {
		batch = append(batch, datatypes.Reading{
			FieldID:    "field_001",
			SensorID:   "sensor_001",
			MetricType: datatypes.MetricSoilMoisture,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			Value:      float64(10 + i),
			Quality:    datatypes.QualityGood,
		})
	}
	// Another field and metric must not leak into the read.
	batch = append(batch,
		datatypes.Reading{FieldID: "field_002", MetricType: datatypes.MetricSoilMoisture, Timestamp: base, Value: 99},
		datatypes.Reading{FieldID: "field_001", MetricType: datatypes.MetricNDVI, Timestamp: base, Value: 0.7},
	)
	if err := s.Write(ctx, batch); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read(ctx, "field_001", datatypes.MetricSoilMoisture, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 readings at or after cutoff, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatal("readings are not newest first")
		}
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(clk, CacheTTL)

	set := datatypes.SnapshotSet{}
	set.Add(datatypes.AggregateSnapshot{
		FieldID:    "field_001",
		MetricType: datatypes.MetricNDVI,
		Window:     datatypes.Window7d,
		Mean:       0.62,
	})
	if err := cache.Put(ctx, "field_001", set); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := cache.Get(ctx, "field_001"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	clk.Advance(CacheTTL - time.Minute)
	if _, err := cache.Get(ctx, "field_001"); err != nil {
		t.Fatalf("Get just inside TTL: %v", err)
	}

	clk.Advance(2 * time.Minute)
	if _, err := cache.Get(ctx, "field_001"); !errors.Is(err, datatypes.ErrNotFound) {
		t.Errorf("expired Get should return ErrNotFound, got %v", err)
	}

	// A fresh Put restores visibility and resets the TTL.
	if err := cache.Put(ctx, "field_001", set); err != nil {
		t.Fatalf("Put after expiry: %v", err)
	}
	if _, err := cache.Get(ctx, "field_001"); err != nil {
		t.Errorf("Get after refresh: %v", err)
	}
}

func TestMemoryCacheUnknownField(t *testing.T) {
	cache := NewMemoryCache(&fakeClock{now: time.Now()}, CacheTTL)
	if _, err := cache.Get(context.Background(), "field_404"); !errors.Is(err, datatypes.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertStreamDeduplicates(t *testing.T) {
	ctx := context.Background()
	stream := NewMemoryAlertStream()

	added, err := stream.Append(ctx, alertEvent("field_001", "low_soil_moisture"))
	if err != nil || !added {
		t.Fatalf("first append: added=%v err=%v", added, err)
	}
	// Same type while active: swallowed.
	added, err = stream.Append(ctx, alertEvent("field_001", "low_soil_moisture"))
	if err != nil || added {
		t.Fatalf("duplicate append: added=%v err=%v", added, err)
	}
	// Different type for the same field: independent.
	added, _ = stream.Append(ctx, alertEvent("field_001", "low_ndvi"))
	if !added {
		t.Fatal("different alert type should append")
	}
	// Same type on a different field: independent.
	added, _ = stream.Append(ctx, alertEvent("field_002", "low_soil_moisture"))
	if !added {
		t.Fatal("same type on another field should append")
	}

	active, err := stream.Active(ctx, "field_001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("field_001 active = %d, want 2", len(active))
	}

	// Clear then re-raise: a new instance is allowed.
	cleared, err := stream.Clear(ctx, "field_001", "low_soil_moisture")
	if err != nil || !cleared {
		t.Fatalf("Clear: cleared=%v err=%v", cleared, err)
	}
	added, _ = stream.Append(ctx, alertEvent("field_001", "low_soil_moisture"))
	if !added {
		t.Error("append after clear should succeed")
	}
}

func TestAlertStreamClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	stream := NewMemoryAlertStream()

	// Clearing something never raised is a no-op, not an error.
	cleared, err := stream.Clear(ctx, "field_001", "low_ndvi")
	if err != nil {
		t.Fatalf("Clear on empty stream: %v", err)
	}
	if cleared {
		t.Error("nothing was active, Clear should report false")
	}
	if recent, _ := stream.Recent(ctx, 10); len(recent) != 0 {
		t.Errorf("no-op clear must not write log entries, got %d", len(recent))
	}
}

func TestAlertStreamClearLogsClearedEvent(t *testing.T) {
	ctx := context.Background()
	stream := NewMemoryAlertStream()

	if _, err := stream.Append(ctx, alertEvent("field_001", "low_soil_moisture")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cleared, err := stream.Clear(ctx, "field_001", "low_soil_moisture")
	if err != nil || !cleared {
		t.Fatalf("Clear: cleared=%v err=%v", cleared, err)
	}

	recent, err := stream.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("log length = %d, want raise and clear entries", len(recent))
	}
	if recent[0].Status != datatypes.AlertCleared {
		t.Errorf("newest entry status = %q, want %q", recent[0].Status, datatypes.AlertCleared)
	}
	if recent[1].Status != datatypes.AlertActive {
		t.Errorf("older entry status = %q, want %q", recent[1].Status, datatypes.AlertActive)
	}

	active, err := stream.Active(ctx, "field_001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %d entries after clear, want 0", len(active))
	}
}

func TestAlertStreamCapDropsOldest(t *testing.T) {
	ctx := context.Background()
	stream := NewMemoryAlertStream()

	// Unique (field, type) pairs so dedup never kicks in.
	for i := 0; i < MaxAlertHistory+25; i++ {
		ev := alertEvent(fmt.Sprintf("field_%05d", i), "low_soil_moisture")
		if added, err := stream.Append(ctx, ev); err != nil || !added {
			t.Fatalf("append %d: added=%v err=%v", i, added, err)
		}
	}

	recent, err := stream.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != MaxAlertHistory {
		t.Fatalf("log length = %d, want cap %d", len(recent), MaxAlertHistory)
	}
	// Newest first; the very first events must have been evicted.
	if recent[0].FieldID != fmt.Sprintf("field_%05d", MaxAlertHistory+24) {
		t.Errorf("newest entry = %s", recent[0].FieldID)
	}
	if recent[len(recent)-1].FieldID != "field_00025" {
		t.Errorf("oldest surviving entry = %s, want field_00025", recent[len(recent)-1].FieldID)
	}
}

func TestMemoryCatalogNearby(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	// Roughly 0.01 degrees latitude is 1.1km.
	square := func(lon, lat float64) datatypes.GeoPolygon {
		return datatypes.GeoPolygon{
			Type: "Polygon",
			Coordinates: [][][]float64{{
				{lon, lat}, {lon + 0.002, lat}, {lon + 0.002, lat + 0.002}, {lon, lat + 0.002}, {lon, lat},
			}},
		}
	}
	near := datatypes.Field{FieldID: "field_near", Boundary: square(-8.50, 52.60)}
	far := datatypes.Field{FieldID: "field_far", Boundary: square(-8.50, 52.80)}
	for _, f := range []datatypes.Field{near, far} {
		if err := cat.UpsertField(ctx, f); err != nil {
			t.Fatalf("UpsertField: %v", err)
		}
	}

	got, err := cat.Nearby(ctx, -8.499, 52.601, 2000)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 1 || got[0].FieldID != "field_near" {
		t.Fatalf("Nearby = %+v, want only field_near", got)
	}
}

func TestMemoryScheduleDueBefore(t *testing.T) {
	ctx := context.Background()
	sched := NewMemorySchedule()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_ = sched.Schedule(ctx, "field_002", "fence_repair", base.Add(48*time.Hour))
	_ = sched.Schedule(ctx, "field_001", "soil_test", base.Add(12*time.Hour))
	_ = sched.Schedule(ctx, "field_003", "reseed", base.Add(200*time.Hour))

	due, err := sched.DueBefore(ctx, base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("DueBefore: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d items, want 2", len(due))
	}
	if due[0].FieldID != "field_001" || due[1].FieldID != "field_002" {
		t.Errorf("due order = %s,%s; want soonest first", due[0].FieldID, due[1].FieldID)
	}
}

func TestMemoryScheduleComplete(t *testing.T) {
	ctx := context.Background()
	sched := NewMemorySchedule()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_ = sched.Schedule(ctx, "field_001", "soil_test", base.Add(12*time.Hour))
	_ = sched.Schedule(ctx, "field_001", "fence_repair", base.Add(24*time.Hour))

	removed, err := sched.Complete(ctx, "field_001", "soil_test")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !removed {
		t.Error("Complete should report removal of scheduled work")
	}

	// Completing again is a no-op.
	removed, err = sched.Complete(ctx, "field_001", "soil_test")
	if err != nil {
		t.Fatalf("Complete (repeat): %v", err)
	}
	if removed {
		t.Error("repeat Complete should report nothing removed")
	}

	due, err := sched.DueBefore(ctx, base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("DueBefore: %v", err)
	}
	if len(due) != 1 || due[0].Task != "fence_repair" {
		t.Errorf("remaining = %+v, want only fence_repair", due)
	}
}
