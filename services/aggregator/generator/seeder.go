// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/rules"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// Seeder loads a generated dataset into the backing stores.
type Seeder struct {
	catalog stores.CatalogWriter
	series  stores.SeriesWriter
	graph   stores.TreatmentGraph
	logger  *slog.Logger
}

func NewSeeder(catalog stores.CatalogWriter, series stores.SeriesWriter,
	graph stores.TreatmentGraph, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{catalog: catalog, series: series, graph: graph, logger: logger}
}

// Run generates and loads the full dataset: farms and fields into the
// catalog, telemetry into the series store, treatments into both the
// catalog and the graph, and the advisory rule set into the graph.
// Every write path is idempotent upsert, so re-seeding converges.
func (s *Seeder) Run(ctx context.Context, cfg Config) error {
	gen := New(cfg)

	for _, farm := range gen.Farms() {
		if err := s.catalog.UpsertFarm(ctx, farm); err != nil {
			return fmt.Errorf("seed farm %s: %w", farm.FarmID, err)
		}
	}

	totalReadings := 0
	for _, field := range gen.Fields() {
		if err := s.catalog.UpsertField(ctx, field); err != nil {
			return fmt.Errorf("seed field %s: %w", field.FieldID, err)
		}
		readings := gen.Readings(field)
		if err := s.series.Write(ctx, readings); err != nil {
			return fmt.Errorf("seed telemetry for %s: %w", field.FieldID, err)
		}
		totalReadings += len(readings)
	}

	for _, ev := range gen.Treatments() {
		if err := s.catalog.InsertTreatment(ctx, ev); err != nil {
			return fmt.Errorf("seed treatment %s: %w", ev.EventID, err)
		}
		if err := s.graph.UpsertTreatment(ctx, ev); err != nil {
			return fmt.Errorf("seed treatment graph %s: %w", ev.EventID, err)
		}
	}

	if err := s.seedAdvisoryGraph(ctx, gen.Fields()); err != nil {
		return err
	}

	s.logger.Info("Seed complete",
		"farms", len(gen.Farms()),
		"fields", len(gen.Fields()),
		"readings", totalReadings,
		"seed", cfg.Seed,
	)
	return nil
}

// seedAdvisoryGraph mirrors the evaluator's rule set into the graph and
// links each rule to the grass species it applies to.
func (s *Seeder) seedAdvisoryGraph(ctx context.Context, fields []datatypes.Field) error {
	advisories := []datatypes.AdvisoryRule{
		{
			RuleID:      rules.AlertLowSoilMoisture,
			Description: "Soil moisture below irrigation threshold",
			Priority:    1,
			Conditions:  fmt.Sprintf("soil_moisture < %.0f", rules.SoilMoistureWarnPct),
			Action:      "schedule irrigation",
		},
		{
			RuleID:      rules.AlertLowNDVI,
			Description: "Vegetation index below forage-quality floor",
			Priority:    2,
			Conditions:  fmt.Sprintf("ndvi < %.1f", rules.NDVIWarnLevel),
			Action:      "inspect pasture cover",
		},
		{
			RuleID:      rules.AlertAdaptiveGrazing,
			Description: "Sustained NDVI decline with short sward",
			Priority:    1,
			Conditions:  fmt.Sprintf("ndvi_trend_14d < %.2f and grass_height < %.0f", rules.NDVITrendCritical, rules.GrassHeightLowCm),
			Action:      "rotate livestock off field",
		},
		{
			RuleID:      rules.AlertLimeApplication,
			Description: "Acidic soil needs lime",
			Priority:    3,
			Conditions:  fmt.Sprintf("soil_ph < %.1f", rules.SoilPHLimeLevel),
			Action:      "apply lime",
		},
		{
			RuleID:      rules.AlertNitrogen,
			Description: "Soil nitrogen below agronomic minimum",
			Priority:    2,
			Conditions:  fmt.Sprintf("soil_nitrogen < %.0f", rules.SoilNitrogenLowPpm),
			Action:      "apply nitrogen fertilizer",
		},
		{
			RuleID:      rules.AlertReseedingSlope,
			Description: "NDVI loss pattern on a steep slope",
			Priority:    3,
			Conditions:  fmt.Sprintf("slope > %.0f and ndvi_trend_14d < %.2f", rules.SteepSlopeDegrees, rules.NDVITrendReseedWarn),
			Action:      "reseed with erosion-resistant mix",
		},
	}
	for _, rule := range advisories {
		if err := s.graph.UpsertAdvisoryRule(ctx, rule); err != nil {
			return fmt.Errorf("seed advisory rule %s: %w", rule.RuleID, err)
		}
	}

	// Link each rule to every species seeded on some field.
	seen := make(map[string]bool)
	for _, field := range fields {
		for _, sp := range field.Species {
			if seen[sp] {
				continue
			}
			seen[sp] = true
			for _, rule := range advisories {
				if err := s.graph.LinkRuleSpecies(ctx, rule.RuleID, sp); err != nil {
					return fmt.Errorf("link rule %s to %s: %w", rule.RuleID, sp, err)
				}
			}
		}
	}
	return nil
}
