// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/rules"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

func newTestScheduler(t *testing.T, h *harness, fieldIDs ...string) (*Scheduler, *stores.MemoryCatalog) {
	t.Helper()
	catalog := stores.NewMemoryCatalog()
	for _, id := range fieldIDs {
		if err := catalog.UpsertField(context.Background(), field(id)); err != nil {
			t.Fatalf("UpsertField: %v", err)
		}
	}
	cfg := SchedulerConfig{Interval: time.Hour, MaxConcurrent: 2}
	return NewScheduler(h.cycle, catalog, cfg, nil), catalog
}

func TestRunNowSweepsEveryField(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedMetric(t, "field_001", datatypes.MetricSoilMoisture, 24, 9.2)
	h.seedMetric(t, "field_002", datatypes.MetricSoilMoisture, 24, 22.0)

	sched, _ := newTestScheduler(t, h, "field_001", "field_002", "field_003")
	if err := sched.RunNow(ctx); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	// field_001 breached, field_002 is healthy, field_003 had no data.
	if active, _ := h.alerts.Active(ctx, "field_001"); len(active) != 1 {
		t.Errorf("field_001 active = %d, want 1", len(active))
	}
	if active, _ := h.alerts.Active(ctx, "field_002"); len(active) != 0 {
		t.Errorf("field_002 active = %d, want 0", len(active))
	}
	if _, err := h.cache.Get(ctx, "field_002"); err != nil {
		t.Errorf("field_002 cache missing: %v", err)
	}
	if _, err := h.cache.Get(ctx, "field_003"); err == nil {
		t.Error("quiet field_003 should have no cache entry")
	}
}

func TestStartRejectsDoubleStart(t *testing.T) {
	h := newHarness(t)
	sched, _ := newTestScheduler(t, h, "field_001")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop is idempotent and Start works again after it.
	if err := sched.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	_ = sched.Stop()
}

// blockingReader parks every read until released, to hold a field pass
// in flight.
type blockingReader struct {
	release chan struct{}
	started chan string
	once    sync.Once
}

func (r *blockingReader) Read(_ context.Context, fieldID, _ string, _ time.Time) ([]datatypes.Reading, error) {
	r.once.Do(func() { r.started <- fieldID })
	<-r.release
	return nil, nil
}

func TestSweepSkipsFieldStillInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	reader := &blockingReader{
		release: make(chan struct{}),
		started: make(chan string, 1),
	}
	cycle := NewCycle(reader, h.cache, h.alerts, rules.MustDefault(), h.clock, nil)

	catalog := stores.NewMemoryCatalog()
	_ = catalog.UpsertField(ctx, field("field_001"))
	sched := NewScheduler(cycle, catalog, SchedulerConfig{Interval: time.Hour, MaxConcurrent: 2}, nil)

	// First sweep parks on the blocked read.
	go func() { _ = sched.sweep(ctx, true) }()
	<-reader.started

	// Second sweep must not start another pass for the same field.
	if !sched.inFlightFor("field_001") {
		t.Fatal("field should be marked in flight")
	}
	if err := sched.sweep(ctx, true); err != nil {
		t.Fatalf("overlapping sweep: %v", err)
	}

	close(reader.release)
}

// inFlightFor exposes the in-flight set to the overlap test.
func (s *Scheduler) inFlightFor(fieldID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[fieldID]
}
