// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline runs the periodic aggregation cycle: read raw sensor
// readings, roll them up into windowed snapshots, evaluate threshold
// rules and publish the results to the cache and the alert stream.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/observability"
	"github.com/Kenan7/nosql-pasture/services/aggregator/rollup"
	"github.com/Kenan7/nosql-pasture/services/aggregator/rules"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// Cycle executes one field's aggregation pass.
//
// # Description
//
// The pass is a reconciliation: outputs are pure functions of the input
// readings, so re-running a cycle over unchanged data converges to the
// same cache contents and alert state instead of accumulating duplicates.
// Failures are contained at two levels. A metric whose read fails is
// logged and skipped without aborting the field; a cache or stream write
// failure is logged and counted but never stops the remaining writes.
//
// # Thread Safety
//
// Safe for concurrent use across different fields. The scheduler
// guarantees at most one in-flight pass per field.
type Cycle struct {
	reader    stores.SeriesReader
	cache     stores.MetricsCache
	alerts    stores.AlertStream
	evaluator *rules.Evaluator
	clock     stores.Clock
	windows   []datatypes.Window
	metrics   []string
	logger    *slog.Logger
}

// CycleResult summarizes one field's pass for logging and tests.
type CycleResult struct {
	FieldID     string
	Skipped     bool
	MetricsRead int
	Snapshots   int
	Raised      int
	Cleared     int
	ReadErrors  int
	WriteErrors int
}

// NewCycle wires a cycle over its stores. A nil clock defaults to the
// system clock; nil windows default to the standard 7/14/30-day set.
func NewCycle(reader stores.SeriesReader, cache stores.MetricsCache, alerts stores.AlertStream,
	evaluator *rules.Evaluator, clock stores.Clock, logger *slog.Logger) *Cycle {
	if clock == nil {
		clock = stores.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cycle{
		reader:    reader,
		cache:     cache,
		alerts:    alerts,
		evaluator: evaluator,
		clock:     clock,
		windows:   datatypes.DefaultWindows,
		metrics:   datatypes.MetricTypes,
		logger:    logger,
	}
}

// Run executes one aggregation pass for field.
//
// # Outputs
//
//   - CycleResult: per-pass counters, including the skip flag.
//   - error: non-nil only when every metric read failed, meaning the
//     series store itself is unreachable.
func (c *Cycle) Run(ctx context.Context, field datatypes.Field) (CycleResult, error) {
	start := time.Now()
	now := c.clock.Now()
	res := CycleResult{FieldID: field.FieldID}
	log := c.logger.With("field_id", field.FieldID)

	horizon := now.Add(-longestWindow(c.windows).Duration())
	byMetric := make(map[string][]datatypes.Reading, len(c.metrics))
	total := 0
	for _, metricType := range c.metrics {
		readings, err := c.reader.Read(ctx, field.FieldID, metricType, horizon)
		if err != nil {
			log.Error("Sensor read failed", "metric_type", metricType, "error", err)
			observability.StoreErrors.WithLabelValues("series", "read").Inc()
			res.ReadErrors++
			continue
		}
		if len(readings) == 0 {
			continue
		}
		byMetric[metricType] = readings
		total += len(readings)
		res.MetricsRead++
	}

	if res.ReadErrors == len(c.metrics) {
		observability.CyclesTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("every metric read failed for %s: %w", field.FieldID, datatypes.ErrInputUnavailable)
	}

	// A quiet field is a skip, not an error: no cache refresh, no alert
	// churn. Its previous snapshots age out via the cache TTL.
	if total == 0 {
		log.Debug("No readings in horizon, skipping cycle")
		observability.CyclesTotal.WithLabelValues("skipped").Inc()
		res.Skipped = true
		return res, nil
	}

	set := datatypes.SnapshotSet{}
	latest := make(map[string]datatypes.Reading, len(byMetric))
	for metricType, readings := range byMetric {
		for w, snap := range rollup.Aggregate(field.FieldID, metricType, readings, now, c.windows) {
			set.Add(snap)
			observability.SnapshotsComputed.WithLabelValues(w.String()).Inc()
			res.Snapshots++
		}
		if r, ok := latestGood(readings, now); ok {
			latest[metricType] = r
		}
	}

	decisions := c.evaluator.Evaluate(rules.Inputs{
		Field:     field,
		Snapshots: set,
		Latest:    latest,
	})
	res.Raised, res.Cleared, res.WriteErrors = c.applyDecisions(ctx, log, field.FieldID, now, decisions)

	if err := c.cache.Put(ctx, field.FieldID, set); err != nil {
		log.Error("Cache write failed", "error", err)
		observability.StoreErrors.WithLabelValues("cache", "put").Inc()
		res.WriteErrors++
	}

	observability.CyclesTotal.WithLabelValues("completed").Inc()
	observability.CycleDuration.Observe(time.Since(start).Seconds())
	log.Info("Aggregation cycle completed",
		"metrics", res.MetricsRead,
		"snapshots", res.Snapshots,
		"raised", res.Raised,
		"cleared", res.Cleared,
		"read_errors", res.ReadErrors,
		"write_errors", res.WriteErrors,
		"duration", time.Since(start).String(),
	)
	return res, nil
}

// applyDecisions turns evaluator decisions into alert stream writes.
func (c *Cycle) applyDecisions(ctx context.Context, log *slog.Logger, fieldID string,
	now time.Time, decisions []datatypes.AlertDecision) (raised, cleared, writeErrors int) {
	for _, d := range decisions {
		switch d.Kind {
		case datatypes.DecisionRaise:
			event := datatypes.AlertEvent{
				ID:        uuid.NewString(),
				FieldID:   fieldID,
				AlertType: d.AlertType,
				Value:     d.Value,
				Threshold: d.Threshold,
				Severity:  d.Severity,
				RaisedAt:  now,
			}
			added, err := c.alerts.Append(ctx, event)
			if err != nil {
				log.Error("Alert append failed", "alert_type", d.AlertType, "error", err)
				observability.StoreErrors.WithLabelValues("alerts", "append").Inc()
				writeErrors++
				continue
			}
			if added {
				log.Warn("Alert raised",
					"alert_type", d.AlertType,
					"severity", d.Severity.String(),
					"value", d.Value,
					"threshold", d.Threshold,
				)
				observability.AlertTransitions.WithLabelValues("raise", d.AlertType).Inc()
				raised++
			}
		case datatypes.DecisionClear:
			wasActive, err := c.alerts.Clear(ctx, fieldID, d.AlertType)
			if err != nil {
				log.Error("Alert clear failed", "alert_type", d.AlertType, "error", err)
				observability.StoreErrors.WithLabelValues("alerts", "clear").Inc()
				writeErrors++
				continue
			}
			if wasActive {
				log.Info("Alert cleared", "alert_type", d.AlertType)
				observability.AlertTransitions.WithLabelValues("clear", d.AlertType).Inc()
				cleared++
			}
		}
	}
	return raised, cleared, writeErrors
}

// latestGood returns the newest good-quality reading at or before now.
// Readings arrive newest first from the series store; future-stamped ones
// are skipped here just as the window rollup skips them.
func latestGood(readings []datatypes.Reading, now time.Time) (datatypes.Reading, bool) {
	for _, r := range readings {
		if r.Timestamp.After(now) {
			continue
		}
		if r.Quality == datatypes.QualityGood {
			return r, true
		}
	}
	return datatypes.Reading{}, false
}

func longestWindow(windows []datatypes.Window) datatypes.Window {
	longest := windows[0]
	for _, w := range windows[1:] {
		if w > longest {
			longest = w
		}
	}
	return longest
}
