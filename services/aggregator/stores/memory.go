// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// ===== In-memory series store =====

// MemorySeriesStore keeps readings in process. It backs tests and the
// single-node demo mode.
type MemorySeriesStore struct {
	mu       sync.RWMutex
	readings []datatypes.Reading
}

func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{}
}

func (s *MemorySeriesStore) Write(_ context.Context, readings []datatypes.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, readings...)
	return nil
}

func (s *MemorySeriesStore) Read(_ context.Context, fieldID, metricType string, since time.Time) ([]datatypes.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []datatypes.Reading
	for _, r := range s.readings {
		if r.FieldID == fieldID && r.MetricType == metricType && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	// Newest first, matching the clustering order of the production store.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// ===== In-memory metrics cache =====

// MemoryCache is a TTL snapshot cache. Expiry is evaluated lazily on Get
// against the injected clock.
type MemoryCache struct {
	clock Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	set       datatypes.SnapshotSet
	expiresAt time.Time
}

func NewMemoryCache(clock Clock, ttl time.Duration) *MemoryCache {
	if clock == nil {
		clock = SystemClock()
	}
	if ttl <= 0 {
		ttl = CacheTTL
	}
	return &MemoryCache{clock: clock, ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *MemoryCache) Put(_ context.Context, fieldID string, set datatypes.SnapshotSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fieldID] = cacheEntry{set: set, expiresAt: c.clock.Now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, fieldID string) (datatypes.SnapshotSet, error) {
	c.mu.RLock()
	e, ok := c.entries[fieldID]
	c.mu.RUnlock()
	if !ok || c.clock.Now().After(e.expiresAt) {
		return nil, datatypes.ErrNotFound
	}
	return e.set, nil
}

// ===== In-memory alert stream =====

// MemoryAlertStream implements the alert log with the same dedup and
// retention semantics as the Redis stream backend.
type MemoryAlertStream struct {
	mu     sync.Mutex
	log    []datatypes.AlertEvent
	active map[string]map[string]datatypes.AlertEvent // fieldID -> alertType -> event
}

func NewMemoryAlertStream() *MemoryAlertStream {
	return &MemoryAlertStream{active: make(map[string]map[string]datatypes.AlertEvent)}
}

func (a *MemoryAlertStream) Append(_ context.Context, event datatypes.AlertEvent) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byType := a.active[event.FieldID]
	if _, dup := byType[event.AlertType]; dup {
		return false, nil
	}
	if byType == nil {
		byType = make(map[string]datatypes.AlertEvent)
		a.active[event.FieldID] = byType
	}
	event.Status = datatypes.AlertActive
	byType[event.AlertType] = event

	a.log = append(a.log, event)
	if over := len(a.log) - MaxAlertHistory; over > 0 {
		a.log = a.log[over:]
	}
	return true, nil
}

func (a *MemoryAlertStream) Clear(_ context.Context, fieldID, alertType string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byType := a.active[fieldID]
	event, ok := byType[alertType]
	if !ok {
		return false, nil
	}

	// The cleared transition is part of the history, so it lands in the
	// log before the active entry goes away.
	event.Status = datatypes.AlertCleared
	a.log = append(a.log, event)
	if over := len(a.log) - MaxAlertHistory; over > 0 {
		a.log = a.log[over:]
	}

	delete(byType, alertType)
	if len(byType) == 0 {
		delete(a.active, fieldID)
	}
	return true, nil
}

func (a *MemoryAlertStream) Active(_ context.Context, fieldID string) ([]datatypes.AlertEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byType := a.active[fieldID]
	out := make([]datatypes.AlertEvent, 0, len(byType))
	for _, ev := range byType {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertType < out[j].AlertType })
	return out, nil
}

func (a *MemoryAlertStream) Recent(_ context.Context, limit int) ([]datatypes.AlertEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 || limit > len(a.log) {
		limit = len(a.log)
	}
	out := make([]datatypes.AlertEvent, 0, limit)
	for i := len(a.log) - 1; i >= len(a.log)-limit; i-- {
		out = append(out, a.log[i])
	}
	return out, nil
}

// ===== In-memory field catalog =====

// MemoryCatalog serves field and farm metadata from process memory. The
// Nearby query uses a haversine scan instead of a geospatial index.
type MemoryCatalog struct {
	mu         sync.RWMutex
	farms      map[string]datatypes.Farm
	fields     map[string]datatypes.Field
	treatments []datatypes.TreatmentEvent
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		farms:  make(map[string]datatypes.Farm),
		fields: make(map[string]datatypes.Field),
	}
}

func (c *MemoryCatalog) UpsertFarm(_ context.Context, farm datatypes.Farm) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.farms[farm.FarmID] = farm
	return nil
}

func (c *MemoryCatalog) UpsertField(_ context.Context, field datatypes.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[field.FieldID] = field
	return nil
}

func (c *MemoryCatalog) InsertTreatment(_ context.Context, ev datatypes.TreatmentEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.treatments = append(c.treatments, ev)
	return nil
}

func (c *MemoryCatalog) Field(_ context.Context, fieldID string) (datatypes.Field, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fields[fieldID]
	if !ok {
		return datatypes.Field{}, datatypes.ErrNotFound
	}
	return f, nil
}

func (c *MemoryCatalog) Fields(_ context.Context) ([]datatypes.Field, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]datatypes.Field, 0, len(c.fields))
	for _, f := range c.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldID < out[j].FieldID })
	return out, nil
}

func (c *MemoryCatalog) Nearby(_ context.Context, lon, lat, maxMeters float64) ([]datatypes.Field, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []datatypes.Field
	for _, f := range c.fields {
		cLon, cLat, ok := f.Boundary.Centroid()
		if !ok {
			continue
		}
		if haversineMeters(lat, lon, cLat, cLon) <= maxMeters {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldID < out[j].FieldID })
	return out, nil
}

// haversineMeters is the great-circle distance between two WGS84 points.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ===== In-memory treatment graph =====

// MemoryGraph records the graph writes so seed and pipeline tests can
// assert on them without a Neo4j instance.
type MemoryGraph struct {
	mu         sync.Mutex
	Rules      map[string]datatypes.AdvisoryRule
	Links      map[string][]string // ruleID -> species
	Treatments []datatypes.TreatmentEvent
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		Rules: make(map[string]datatypes.AdvisoryRule),
		Links: make(map[string][]string),
	}
}

func (g *MemoryGraph) UpsertAdvisoryRule(_ context.Context, rule datatypes.AdvisoryRule) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Rules[rule.RuleID] = rule
	return nil
}

func (g *MemoryGraph) LinkRuleSpecies(_ context.Context, ruleID, species string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Links[ruleID] = append(g.Links[ruleID], species)
	return nil
}

func (g *MemoryGraph) UpsertTreatment(_ context.Context, ev datatypes.TreatmentEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Treatments = append(g.Treatments, ev)
	return nil
}

// ===== In-memory maintenance schedule =====

type MemorySchedule struct {
	mu    sync.Mutex
	items []MaintenanceItem
}

func NewMemorySchedule() *MemorySchedule { return &MemorySchedule{} }

func (s *MemorySchedule) Schedule(_ context.Context, fieldID, task string, due time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, MaintenanceItem{FieldID: fieldID, Task: task, Due: due})
	return nil
}

func (s *MemorySchedule) DueBefore(_ context.Context, cutoff time.Time) ([]MaintenanceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []MaintenanceItem
	for _, it := range s.items {
		if it.Due.Before(cutoff) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (s *MemorySchedule) Complete(_ context.Context, fieldID, task string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := false
	for _, it := range s.items {
		if it.FieldID == fieldID && it.Task == task {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return removed, nil
}
