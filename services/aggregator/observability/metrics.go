// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exposes the pipeline's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts aggregation cycles by outcome (completed, skipped,
	// failed).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pasture_aggregation_cycles_total",
		Help: "Total per-field aggregation cycles by outcome",
	}, []string{"outcome"})

	// CycleDuration tracks per-field cycle latency.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pasture_aggregation_cycle_duration_seconds",
		Help:    "Per-field aggregation cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	})

	// AlertTransitions counts alert raises and clears by alert type.
	AlertTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pasture_alert_transitions_total",
		Help: "Alert raises and clears by transition and alert type",
	}, []string{"transition", "alert_type"})

	// StoreErrors counts backend failures by store and operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pasture_store_errors_total",
		Help: "Storage backend errors by store and operation",
	}, []string{"store", "operation"})

	// SnapshotsComputed counts aggregate snapshots produced, by window.
	SnapshotsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pasture_snapshots_computed_total",
		Help: "Aggregate snapshots computed, by window",
	}, []string{"window"})
)
