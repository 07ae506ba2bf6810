// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package generator produces deterministic synthetic pasture data:
// farms, fields, hourly sensor telemetry and treatment events.
//
// # Description
//
// All randomness flows through one seeded source, so the same seed and
// call order reproduce the same dataset exactly. Telemetry follows
// plausible shapes: seasonal and diurnal temperature cycles, humidity
// inverse to temperature, soil moisture that drains faster on slopes and
// recovers on rain events, NDVI coupled to moisture, grass growing over
// the simulated period. A fraction of fields carry drought stress or
// nutrient deficiency so the threshold rules have something to find, and
// 5% of readings get a bad quality flag to exercise filtering.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// Config controls dataset shape. Zero values fall back to defaults.
type Config struct {
	NumFarms       int
	Seed           int64
	Days           int
	ReadingsPerDay int
	StartDate      time.Time
}

// DefaultConfig is five farms, thirty days of hourly readings, seed 42.
func DefaultConfig() Config {
	return Config{
		NumFarms:       5,
		Seed:           42,
		Days:           30,
		ReadingsPerDay: 24,
		StartDate:      time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour),
	}
}

// Base farm locations, longitude first.
var baseLocations = [][2]float64{
	{-122.4194, 37.7749},
	{-121.8907, 37.3382},
	{-122.0308, 37.3541},
	{-122.2711, 37.8044},
	{-121.7680, 37.6819},
}

var (
	soilTypes = []string{"loam", "clay_loam", "sandy_loam", "silt_loam", "clay"}
	aspects   = []string{"north", "south", "east", "west", "northeast", "northwest", "southeast", "southwest"}
	species   = [][]string{
		{"perennial_ryegrass", "white_clover"},
		{"tall_fescue", "red_clover"},
		{"orchardgrass", "alfalfa"},
		{"kentucky_bluegrass", "white_clover"},
		{"timothy", "meadow_fescue"},
	}
	farmNames = []string{
		"Green Valley Farm", "Sunset Meadows", "Rolling Hills Ranch",
		"Oak Ridge Farm", "Pleasant View Pastures",
	}
)

// fieldProfile carries the hidden per-field state that shapes telemetry.
type fieldProfile struct {
	hasDroughtStress     bool
	hasNutrientShortage  bool
	centerLon, centerLat float64
}

// Generator holds the farm structure built at construction time.
type Generator struct {
	cfg      Config
	rng      *rand.Rand
	farms    []datatypes.Farm
	fields   []datatypes.Field
	profiles map[string]fieldProfile
}

// New builds the farm and field structure for cfg.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumFarms <= 0 {
		cfg.NumFarms = def.NumFarms
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.ReadingsPerDay <= 0 {
		cfg.ReadingsPerDay = def.ReadingsPerDay
	}
	if cfg.StartDate.IsZero() {
		cfg.StartDate = def.StartDate
	}

	g := &Generator{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		profiles: make(map[string]fieldProfile),
	}
	g.buildStructure()
	return g
}

func (g *Generator) buildStructure() {
	for i := 0; i < g.cfg.NumFarms; i++ {
		farmID := fmt.Sprintf("farm_%03d", i+1)
		loc := baseLocations[i%len(baseLocations)]
		numFields := 3 + g.rng.Intn(3)

		farm := datatypes.Farm{
			FarmID: farmID,
			Name:   farmNames[i%len(farmNames)],
			Location: datatypes.GeoPoint{
				Type:        "Point",
				Coordinates: []float64{loc[0], loc[1]},
			},
			EstablishedDate: "2010-01-01",
		}

		for j := 0; j < numFields; j++ {
			fieldID := fmt.Sprintf("field_%03d_%02d", i+1, j+1)
			lon := loc[0] + g.uniform(-0.02, 0.02)
			lat := loc[1] + g.uniform(-0.01, 0.01)
			area := round1(g.uniform(15.0, 40.0))

			field := datatypes.Field{
				FieldID:      fieldID,
				FarmID:       farmID,
				Name:         fmt.Sprintf("Pasture %c", 'A'+j),
				Boundary:     squareBoundary(lon, lat, area),
				AreaHectares: area,
				SoilType:     soilTypes[g.rng.Intn(len(soilTypes))],
				SoilPH:       round1(g.uniform(5.5, 7.5)),
				Terrain: datatypes.Terrain{
					ElevationM:   50 + g.rng.Intn(251),
					SlopeDegrees: round1(g.uniform(0, 15)),
					Aspect:       aspects[g.rng.Intn(len(aspects))],
				},
				Species: species[g.rng.Intn(len(species))],
			}
			g.fields = append(g.fields, field)
			g.profiles[fieldID] = fieldProfile{
				hasDroughtStress:    g.rng.Float64() < 0.2,
				hasNutrientShortage: g.rng.Float64() < 0.15,
				centerLon:           lon,
				centerLat:           lat,
			}
			farm.TotalAreaHectares += area
		}
		g.farms = append(g.farms, farm)
	}
}

// Farms returns the generated farm records.
func (g *Generator) Farms() []datatypes.Farm { return g.farms }

// Fields returns the generated field records.
func (g *Generator) Fields() []datatypes.Field { return g.fields }

// Readings generates the full telemetry set for one field.
func (g *Generator) Readings(field datatypes.Field) []datatypes.Reading {
	profile := g.profiles[field.FieldID]
	slopeFactor := field.Terrain.SlopeDegrees / 15.0

	days := g.cfg.Days
	var out []datatypes.Reading
	for day := 0; day < days; day++ {
		for hour := 0; hour < g.cfg.ReadingsPerDay; hour++ {
			ts := g.cfg.StartDate.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)

			// Seasonal base plus a diurnal swing peaking mid-afternoon.
			baseTemp := 15 + 10*math.Sin(float64(day)/float64(days)*math.Pi)
			temperature := round1(baseTemp +
				8*math.Sin(float64(hour)/24*2*math.Pi-math.Pi/2) +
				g.normal(0, 1.5))

			humidity := round1(clamp(70-(temperature-15)*1.5+g.normal(0, 5), 30, 95))

			// Slopes drain faster; stressed fields sit lower; moisture
			// declines over the period with occasional rain recoveries.
			baseMoisture := 25 - slopeFactor*10
			if profile.hasDroughtStress {
				baseMoisture -= 8
			}
			moisture := baseMoisture - float64(day)/float64(days)*10
			precipitation := 0.0
			if g.rng.Float64() < 0.1 {
				rain := g.uniform(5, 15)
				moisture += rain
				precipitation = round1(rain)
			}
			soilMoisture := round1(clamp(moisture+g.normal(0, 2), 5, 45))

			baseNDVI := 0.75 - slopeFactor*0.15
			if profile.hasDroughtStress {
				baseNDVI -= 0.2
			}
			if soilMoisture < 15 {
				baseNDVI -= 0.1
			}
			ndvi := round2(clamp(baseNDVI+g.normal(0, 0.05), 0.2, 0.9))

			baseHeight := 8 + float64(day)/float64(days)*8
			if profile.hasDroughtStress || soilMoisture < 15 {
				baseHeight *= 0.7
			}
			grassHeight := round1(clamp(baseHeight+g.normal(0, 1), 4, 25))

			soilPH := round1(field.SoilPH + g.normal(0, 0.1))

			nitrogenBase := 45.0
			if profile.hasNutrientShortage {
				nitrogenBase = 25.0
			}
			nitrogen := round1(nitrogenBase + g.normal(0, 5))
			phosphorus := round1(25 + g.normal(0, 3))
			potassium := round1(150 + g.normal(0, 10))

			solar := 0.0
			if hour >= 6 && hour <= 18 {
				solar = round1(800*math.Sin(float64(hour-6)/12*math.Pi) + g.normal(0, 50))
			}
			wind := round1(clamp(3+g.rng.ExpFloat64()*2, 0, 15))

			values := []struct {
				metricType string
				value      float64
			}{
				{datatypes.MetricTemperature, temperature},
				{datatypes.MetricHumidity, humidity},
				{datatypes.MetricSoilMoisture, soilMoisture},
				{datatypes.MetricPrecipitation, precipitation},
				{datatypes.MetricWindSpeed, wind},
				{datatypes.MetricSolarRadiation, solar},
				{datatypes.MetricGrassHeight, grassHeight},
				{datatypes.MetricNDVI, ndvi},
				{datatypes.MetricSoilPH, soilPH},
				{datatypes.MetricSoilNitrogen, nitrogen},
				{datatypes.MetricSoilPhosphorus, phosphorus},
				{datatypes.MetricSoilPotassium, potassium},
			}
			for _, v := range values {
				quality := datatypes.QualityGood
				if g.rng.Float64() < 0.05 {
					quality = datatypes.QualityBad
				}
				out = append(out, datatypes.Reading{
					FieldID:    field.FieldID,
					SensorID:   fmt.Sprintf("sensor_%s_%s", v.metricType, field.FieldID),
					MetricType: v.metricType,
					Timestamp:  ts,
					Value:      v.value,
					Quality:    quality,
				})
			}
		}
	}
	return out
}

// Treatments generates fertilizer and irrigation events over the period.
func (g *Generator) Treatments() []datatypes.TreatmentEvent {
	var events []datatypes.TreatmentEvent
	for _, field := range g.fields {
		for n := g.rng.Intn(3); n > 0; n-- {
			events = append(events, datatypes.TreatmentEvent{
				EventID:   fmt.Sprintf("evt_%s_%d", field.FieldID, len(events)),
				FieldID:   field.FieldID,
				EventType: "fertilizer",
				EventDate: g.cfg.StartDate.AddDate(0, 0, g.rng.Intn(g.cfg.Days)),
				Details: map[string]any{
					"fertilizer_type": []string{"NPK", "Urea", "Organic"}[g.rng.Intn(3)],
					"n_kg_per_ha":     30 + g.rng.Intn(51),
					"p_kg_per_ha":     15 + g.rng.Intn(26),
					"k_kg_per_ha":     15 + g.rng.Intn(26),
				},
			})
		}
		if g.rng.Float64() < 0.7 {
			for n := 1 + g.rng.Intn(3); n > 0; n-- {
				events = append(events, datatypes.TreatmentEvent{
					EventID:   fmt.Sprintf("evt_%s_%d", field.FieldID, len(events)),
					FieldID:   field.FieldID,
					EventType: "irrigation",
					EventDate: g.cfg.StartDate.AddDate(0, 0, g.rng.Intn(g.cfg.Days)),
					Details: map[string]any{
						"amount_mm": 15 + g.rng.Intn(26),
						"method":    []string{"sprinkler", "drip", "flood"}[g.rng.Intn(3)],
					},
				})
			}
		}
	}
	return events
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) normal(mean, sd float64) float64 {
	return mean + g.rng.NormFloat64()*sd
}

// squareBoundary approximates a square field boundary around the center
// sized to the given area.
func squareBoundary(lon, lat, areaHectares float64) datatypes.GeoPolygon {
	side := math.Sqrt(areaHectares/10000) * 0.01
	h := side / 2
	return datatypes.GeoPolygon{
		Type: "Polygon",
		Coordinates: [][][]float64{{
			{lon - h, lat + h},
			{lon + h, lat + h},
			{lon + h, lat - h},
			{lon - h, lat - h},
			{lon - h, lat + h},
		}},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
