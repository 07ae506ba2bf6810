// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// SchedulerConfig holds configuration for the aggregation scheduler.
//
// # Fields
//
//   - Interval: how often a full sweep over the catalog runs.
//   - MaxConcurrent: upper bound on fields aggregated in parallel.
type SchedulerConfig struct {
	Interval      time.Duration
	MaxConcurrent int
}

// DefaultSchedulerConfig returns production defaults: a 5-minute sweep
// with 4 fields in flight at once.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      5 * time.Minute,
		MaxConcurrent: 4,
	}
}

// Scheduler drives periodic aggregation sweeps over the field catalog.
//
// # Description
//
// Uses the ticker + done channel pattern for graceful shutdown. Each
// sweep lists the catalog and runs one Cycle per field through a
// weighted semaphore. A field whose previous pass is still running is
// skipped for the sweep rather than queued, so a slow backend cannot
// pile up duplicate passes; the next sweep picks the field up again.
//
// # Thread Safety
//
// All public methods are safe for concurrent use.
type Scheduler struct {
	cycle   *Cycle
	catalog stores.FieldCatalog
	config  SchedulerConfig
	logger  *slog.Logger

	sem      *semaphore.Weighted
	mu       sync.Mutex
	running  bool
	done     chan struct{}
	inFlight map[string]bool
}

// NewScheduler creates a scheduler over cycle and catalog. Zero config
// values fall back to DefaultSchedulerConfig.
func NewScheduler(cycle *Cycle, catalog stores.FieldCatalog, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cycle:    cycle,
		catalog:  catalog,
		config:   config,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(config.MaxConcurrent)),
		done:     make(chan struct{}),
		inFlight: make(map[string]bool),
	}
}

// Start begins the background sweep loop. Returns an error if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // Reset for potential restart
	s.mu.Unlock()

	s.logger.Info("Aggregation scheduler starting",
		"interval", s.config.Interval.String(),
		"max_concurrent", s.config.MaxConcurrent,
	)
	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. In-flight field passes finish on
// their own. Safe to call multiple times.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.logger.Info("Aggregation scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs one full sweep synchronously, waiting for every field
// pass to finish. Used by the manual trigger endpoint and the CLI.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.sweep(ctx, true)
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Aggregation scheduler context cancelled")
			_ = s.Stop()
			return
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.sweep(ctx, false); err != nil {
				s.logger.Error("Aggregation sweep failed", "error", err)
			}
		}
	}
}

// sweep runs one pass over every cataloged field. When wait is true the
// call blocks until all spawned passes complete.
func (s *Scheduler) sweep(ctx context.Context, wait bool) error {
	fields, err := s.catalog.Fields(ctx)
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}

	var wg sync.WaitGroup
	for _, field := range fields {
		if !s.claim(field.FieldID) {
			s.logger.Debug("Previous pass still running, skipping field",
				"field_id", field.FieldID)
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.release(field.FieldID)
			break // Context cancelled mid-sweep.
		}

		wg.Add(1)
		go func(f datatypes.Field) {
			defer wg.Done()
			defer s.sem.Release(1)
			defer s.release(f.FieldID)

			// One field's failure must not touch the rest of the sweep.
			if _, err := s.cycle.Run(ctx, f); err != nil {
				s.logger.Error("Field aggregation failed",
					"field_id", f.FieldID, "error", err)
			}
		}(field)
	}
	if wait {
		wg.Wait()
	}
	return nil
}

func (s *Scheduler) claim(fieldID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[fieldID] {
		return false
	}
	s.inFlight[fieldID] = true
	return true
}

func (s *Scheduler) release(fieldID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, fieldID)
}
