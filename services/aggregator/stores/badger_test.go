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

func openTestBadger(t *testing.T) *badgerHandle {
	t.Helper()
	db, err := OpenBadgerInMemory()
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stream, err := NewBadgerAlertStream(db)
	if err != nil {
		t.Fatalf("NewBadgerAlertStream: %v", err)
	}
	t.Cleanup(func() { _ = stream.Close() })

	return &badgerHandle{
		cache:  NewBadgerCache(db, time.Hour),
		stream: stream,
	}
}

type badgerHandle struct {
	cache  *BadgerCache
	stream *BadgerAlertStream
}

func TestBadgerCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := openTestBadger(t)

	set := datatypes.SnapshotSet{}
	set.Add(datatypes.AggregateSnapshot{
		FieldID:     "field_001",
		MetricType:  datatypes.MetricSoilMoisture,
		Window:      datatypes.Window7d,
		Mean:        14.2,
		Min:         11.0,
		Max:         18.3,
		TrendSlope:  -0.4,
		SampleCount: 33,
	})
	set.Add(datatypes.AggregateSnapshot{
		FieldID:    "field_001",
		MetricType: datatypes.MetricSoilMoisture,
		Window:     datatypes.Window30d,
		Mean:       16.8,
	})

	if err := h.cache.Put(ctx, "field_001", set); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := h.cache.Get(ctx, "field_001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap, ok := got.Get(datatypes.MetricSoilMoisture, datatypes.Window7d)
	if !ok {
		t.Fatal("7d snapshot missing after round trip")
	}
	if snap.Mean != 14.2 || snap.SampleCount != 33 {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := h.cache.Get(ctx, "field_404"); !errors.Is(err, datatypes.ErrNotFound) {
		t.Errorf("unknown field: want ErrNotFound, got %v", err)
	}
}

func TestBadgerCachePutReplacesWholeSet(t *testing.T) {
	ctx := context.Background()
	h := openTestBadger(t)

	first := datatypes.SnapshotSet{}
	first.Add(datatypes.AggregateSnapshot{
		FieldID: "field_001", MetricType: datatypes.MetricNDVI, Window: datatypes.Window7d, Mean: 0.7,
	})
	second := datatypes.SnapshotSet{}
	second.Add(datatypes.AggregateSnapshot{
		FieldID: "field_001", MetricType: datatypes.MetricSoilPH, Window: datatypes.Window7d, Mean: 6.1,
	})

	_ = h.cache.Put(ctx, "field_001", first)
	_ = h.cache.Put(ctx, "field_001", second)

	got, err := h.cache.Get(ctx, "field_001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Get(datatypes.MetricNDVI, datatypes.Window7d); ok {
		t.Error("stale NDVI snapshot survived a full replace")
	}
	if _, ok := got.Get(datatypes.MetricSoilPH, datatypes.Window7d); !ok {
		t.Error("new snapshot missing after replace")
	}
}

func TestBadgerAlertStreamDedupAndClear(t *testing.T) {
	ctx := context.Background()
	h := openTestBadger(t)

	added, err := h.stream.Append(ctx, alertEvent("field_001", "low_soil_moisture"))
	if err != nil || !added {
		t.Fatalf("first append: added=%v err=%v", added, err)
	}
	added, err = h.stream.Append(ctx, alertEvent("field_001", "low_soil_moisture"))
	if err != nil || added {
		t.Fatalf("duplicate append: added=%v err=%v", added, err)
	}

	active, err := h.stream.Active(ctx, "field_001")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 || active[0].Status != datatypes.AlertActive {
		t.Fatalf("active = %+v", active)
	}

	cleared, err := h.stream.Clear(ctx, "field_001", "low_soil_moisture")
	if err != nil || !cleared {
		t.Fatalf("Clear: cleared=%v err=%v", cleared, err)
	}
	// Idempotent: the second clear finds nothing active.
	cleared, err = h.stream.Clear(ctx, "field_001", "low_soil_moisture")
	if err != nil || cleared {
		t.Fatalf("second Clear: cleared=%v err=%v", cleared, err)
	}
	active, _ = h.stream.Active(ctx, "field_001")
	if len(active) != 0 {
		t.Fatalf("active after clear = %d", len(active))
	}

	added, _ = h.stream.Append(ctx, alertEvent("field_001", "low_soil_moisture"))
	if !added {
		t.Error("re-raise after clear should append")
	}
}

func TestBadgerAlertStreamClearLogsClearedEvent(t *testing.T) {
	ctx := context.Background()
	h := openTestBadger(t)

	if _, err := h.stream.Append(ctx, alertEvent("field_001", "low_soil_moisture")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cleared, err := h.stream.Clear(ctx, "field_001", "low_soil_moisture")
	if err != nil || !cleared {
		t.Fatalf("Clear: cleared=%v err=%v", cleared, err)
	}

	recent, err := h.stream.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("log length = %d, want raise and clear entries", len(recent))
	}
	if recent[0].Status != datatypes.AlertCleared || recent[0].AlertType != "low_soil_moisture" {
		t.Errorf("newest entry = %+v, want cleared low_soil_moisture", recent[0])
	}
	if recent[1].Status != datatypes.AlertActive {
		t.Errorf("older entry status = %q, want %q", recent[1].Status, datatypes.AlertActive)
	}
}

func TestBadgerAlertStreamCapSurvivesDuplicateAppends(t *testing.T) {
	if testing.Short() {
		t.Skip("writes past the full history cap")
	}
	ctx := context.Background()
	h := openTestBadger(t)

	// One long-lived alert to throw duplicates at.
	if added, err := h.stream.Append(ctx, alertEvent("field_pinned", "low_ndvi")); err != nil || !added {
		t.Fatalf("pinned append: added=%v err=%v", added, err)
	}

	// Every unique append is shadowed by a rejected duplicate. Rejected
	// appends must not count against the log cap or its eviction order.
	for i := 0; i < MaxAlertHistory+25; i++ {
		ev := alertEvent(fmt.Sprintf("field_%05d", i), "low_soil_moisture")
		if added, err := h.stream.Append(ctx, ev); err != nil || !added {
			t.Fatalf("append %d: added=%v err=%v", i, added, err)
		}
		if added, err := h.stream.Append(ctx, alertEvent("field_pinned", "low_ndvi")); err != nil || added {
			t.Fatalf("duplicate append %d: added=%v err=%v", i, added, err)
		}
	}

	recent, err := h.stream.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != MaxAlertHistory {
		t.Fatalf("log length = %d, want cap %d", len(recent), MaxAlertHistory)
	}
	if recent[0].FieldID != fmt.Sprintf("field_%05d", MaxAlertHistory+24) {
		t.Errorf("newest entry = %s", recent[0].FieldID)
	}
	// Writes were the pinned raise then the unique raises, so the 26
	// oldest entries fall off and field_00025 survives as the tail.
	if recent[len(recent)-1].FieldID != "field_00025" {
		t.Errorf("oldest surviving entry = %s, want field_00025", recent[len(recent)-1].FieldID)
	}
}

func TestBadgerAlertStreamRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := openTestBadger(t)

	types := []string{"low_soil_moisture", "low_ndvi", "lime_application"}
	for _, at := range types {
		if added, err := h.stream.Append(ctx, alertEvent("field_001", at)); err != nil || !added {
			t.Fatalf("append %s: added=%v err=%v", at, added, err)
		}
	}

	recent, err := h.stream.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(recent))
	}
	if recent[0].AlertType != "lime_application" || recent[1].AlertType != "low_ndvi" {
		t.Errorf("recent order = %s,%s; want newest first", recent[0].AlertType, recent[1].AlertType)
	}
}
