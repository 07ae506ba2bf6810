// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stores defines the storage boundaries of the aggregation
// pipeline and their backends.
//
// The pipeline core only sees the interfaces in this file. Production
// wiring binds them to InfluxDB (sensor series), Redis (metrics cache,
// alert stream, maintenance schedule), MongoDB (field catalog) and Neo4j
// (treatment graph); Badger provides an embedded single-node alternative
// for the cache and alert stream, and memory.go provides in-process
// implementations for tests.
package stores

import (
	"context"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// MaxAlertHistory caps the persisted alert log. When the cap is reached
// the oldest entries are discarded first.
const MaxAlertHistory = 10000

// CacheTTL is how long a field's aggregate hash stays readable without a
// refresh. A field whose sensors go quiet ages out of the cache rather
// than serving stale aggregates forever.
const CacheTTL = 7 * 24 * time.Hour

// Clock abstracts time for TTL and windowing logic so tests can advance
// it without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SeriesReader retrieves raw sensor readings for one field and metric.
//
// # Outputs
//
//   - []datatypes.Reading: newest first. Empty when the field has no
//     data in the interval; that is not an error.
//   - error: wrapped ErrInputUnavailable when the backend cannot be
//     reached, so callers can distinguish "no data" from "no store".
type SeriesReader interface {
	Read(ctx context.Context, fieldID, metricType string, since time.Time) ([]datatypes.Reading, error)
}

// SeriesWriter persists raw sensor readings. Used by the seed generator
// and by sensor ingest, not by the aggregation cycle itself.
type SeriesWriter interface {
	Write(ctx context.Context, readings []datatypes.Reading) error
}

// SeriesStore is a read/write sensor series backend.
type SeriesStore interface {
	SeriesReader
	SeriesWriter
}

// MetricsCache holds the latest aggregate snapshots per field for cheap
// dashboard reads.
//
// Put replaces the field's whole snapshot set in one operation and
// resets the TTL; readers never observe a partially updated set. Get
// returns ErrNotFound for unknown or expired fields.
type MetricsCache interface {
	Put(ctx context.Context, fieldID string, set datatypes.SnapshotSet) error
	Get(ctx context.Context, fieldID string) (datatypes.SnapshotSet, error)
}

// AlertStream is the append-only alert log plus the per-field active
// index that backs deduplication.
//
// Append persists event and marks its (field, alert type) pair active.
// It reports false without error when that pair is already active, which
// is how repeated breaches across cycles collapse into one alert. Clear
// marks the pair inactive; it reports false without error when nothing
// was active, so healthy fields can be cleared every cycle for free.
type AlertStream interface {
	Append(ctx context.Context, event datatypes.AlertEvent) (bool, error)
	Clear(ctx context.Context, fieldID, alertType string) (bool, error)
	Active(ctx context.Context, fieldID string) ([]datatypes.AlertEvent, error)
	Recent(ctx context.Context, limit int) ([]datatypes.AlertEvent, error)
}

// FieldCatalog serves field and farm metadata.
type FieldCatalog interface {
	Field(ctx context.Context, fieldID string) (datatypes.Field, error)
	Fields(ctx context.Context) ([]datatypes.Field, error)
	Nearby(ctx context.Context, lon, lat, maxMeters float64) ([]datatypes.Field, error)
}

// CatalogWriter is the seed-time write side of the catalog.
type CatalogWriter interface {
	UpsertFarm(ctx context.Context, farm datatypes.Farm) error
	UpsertField(ctx context.Context, field datatypes.Field) error
	InsertTreatment(ctx context.Context, ev datatypes.TreatmentEvent) error
}

// TreatmentGraph records advisory rules and applied treatments and the
// relationships between them.
type TreatmentGraph interface {
	UpsertAdvisoryRule(ctx context.Context, rule datatypes.AdvisoryRule) error
	LinkRuleSpecies(ctx context.Context, ruleID, species string) error
	UpsertTreatment(ctx context.Context, ev datatypes.TreatmentEvent) error
}

// MaintenanceSchedule orders upcoming field work by due time. Complete
// removes every entry for the (field, task) pair and reports whether
// anything was removed; completing absent work is a no-op.
type MaintenanceSchedule interface {
	Schedule(ctx context.Context, fieldID, task string, due time.Time) error
	DueBefore(ctx context.Context, cutoff time.Time) ([]MaintenanceItem, error)
	Complete(ctx context.Context, fieldID, task string) (bool, error)
}

// MaintenanceItem is one scheduled piece of field work.
type MaintenanceItem struct {
	FieldID string    `json:"field_id"`
	Task    string    `json:"task"`
	Due     time.Time `json:"due"`
}
