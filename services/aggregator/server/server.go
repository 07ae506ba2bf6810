// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server wires the aggregator's stores, scheduler, and HTTP API
// into a runnable service. The pasture CLI and the service binary both
// start the daemon through Run, so deployment mode handling lives in one
// place.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Kenan7/nosql-pasture/services/aggregator/generator"
	"github.com/Kenan7/nosql-pasture/services/aggregator/pipeline"
	"github.com/Kenan7/nosql-pasture/services/aggregator/routes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/rules"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// Backend selects the store wiring for a deployment.
const (
	// BackendProduction wires InfluxDB, Redis, MongoDB and Neo4j.
	BackendProduction = "production"
	// BackendEmbedded wires Badger plus in-process stores for
	// single-node demos and local development.
	BackendEmbedded = "embedded"
)

// Options configures one aggregator instance.
type Options struct {
	Backend  string        // BackendProduction (default) or BackendEmbedded
	Addr     string        // listen address, default ":8080"
	Interval time.Duration // scheduler tick, default 5m
	Seed     bool          // load synthetic data before starting
	DataDir  string        // badger directory for the embedded backend
	Logger   *slog.Logger  // defaults to slog.Default()
}

func (o Options) withDefaults() Options {
	if o.Backend == "" {
		o.Backend = BackendProduction
	}
	if o.Addr == "" {
		o.Addr = ":8080"
	}
	if o.DataDir == "" {
		o.DataDir = "./data"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// OptionsFromEnv builds Options from the service's environment variables:
// PASTURE_BACKEND, PORT, PASTURE_INTERVAL, PASTURE_SEED, PASTURE_DATA_DIR.
func OptionsFromEnv() (Options, error) {
	opts := Options{
		Backend: envOr("PASTURE_BACKEND", BackendProduction),
		Addr:    ":" + envOr("PORT", "8080"),
		Seed:    os.Getenv("PASTURE_SEED") == "1",
		DataDir: envOr("PASTURE_DATA_DIR", "./data"),
	}
	if raw := os.Getenv("PASTURE_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Options{}, fmt.Errorf("invalid PASTURE_INTERVAL %q: %w", raw, err)
		}
		opts.Interval = d
	}
	return opts, nil
}

// Run starts the scheduler and the HTTP API and blocks until the server
// stops. The context cancels the scheduler's periodic sweeps.
func Run(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()
	log := opts.Logger
	log.Info("Starting pasture aggregator", "backend", opts.Backend, "addr", opts.Addr)

	b, err := openBackends(ctx, opts)
	if err != nil {
		return fmt.Errorf("backend initialization failed: %w", err)
	}
	defer b.close()

	if opts.Seed {
		seeder := generator.NewSeeder(b.writer, b.series, b.graph, log)
		if err := seeder.Run(ctx, generator.DefaultConfig()); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
	}

	cycle := pipeline.NewCycle(b.series, b.cache, b.alerts, rules.MustDefault(), nil, log)
	schedCfg := pipeline.DefaultSchedulerConfig()
	if opts.Interval > 0 {
		schedCfg.Interval = opts.Interval
	}
	sched := pipeline.NewScheduler(cycle, b.catalog, schedCfg, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := sched.Start(runCtx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}
	defer sched.Stop()

	router := gin.Default()
	routes.SetupRoutes(router, routes.Deps{
		Catalog:   b.catalog,
		Cache:     b.cache,
		Alerts:    b.alerts,
		Schedule:  b.schedule,
		Scheduler: sched,
	})

	log.Info("Starting aggregator API server", "addr", opts.Addr)
	return router.Run(opts.Addr)
}

// Seed loads a synthetic dataset into the configured backend and exits.
// Used by the `pasture seed` command to populate stores without starting
// the daemon.
func Seed(ctx context.Context, opts Options, cfg generator.Config) error {
	opts = opts.withDefaults()
	b, err := openBackends(ctx, opts)
	if err != nil {
		return fmt.Errorf("backend initialization failed: %w", err)
	}
	defer b.close()

	seeder := generator.NewSeeder(b.writer, b.series, b.graph, opts.Logger)
	return seeder.Run(ctx, cfg)
}

// backends is the resolved store set for one deployment mode.
type backends struct {
	series   stores.SeriesStore
	cache    stores.MetricsCache
	alerts   stores.AlertStream
	catalog  stores.FieldCatalog
	writer   stores.CatalogWriter
	graph    stores.TreatmentGraph
	schedule stores.MaintenanceSchedule
	close    func()
}

func openBackends(ctx context.Context, opts Options) (backends, error) {
	if opts.Backend == BackendEmbedded {
		return embeddedBackends(opts)
	}
	return productionBackends(ctx, opts.Logger)
}

// productionBackends wires InfluxDB, Redis, MongoDB and Neo4j from the
// PASTURE_* environment variables.
func productionBackends(ctx context.Context, log *slog.Logger) (backends, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	influxURL := envOr("PASTURE_INFLUX_URL", "http://influxdb:8086")
	influxToken := os.Getenv("PASTURE_INFLUX_TOKEN")
	if influxToken == "" {
		return backends{}, fmt.Errorf("PASTURE_INFLUX_TOKEN environment variable is required")
	}
	influxOrg := envOr("PASTURE_INFLUX_ORG", "pasture")
	influxBucket := envOr("PASTURE_INFLUX_BUCKET", "sensor-data")

	influxClient := influxdb2.NewClient(influxURL, influxToken)
	if err := waitForInflux(influxClient, log); err != nil {
		influxClient.Close()
		return backends{}, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: envOr("PASTURE_REDIS_ADDR", "redis:6379")})

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(
		envOr("PASTURE_MONGO_URI", "mongodb://mongodb:27017")))
	if err != nil {
		return backends{}, err
	}
	catalog := stores.NewMongoCatalog(mongoClient.Database(envOr("PASTURE_MONGO_DB", "pasture")))
	if err := catalog.EnsureIndexes(ctx); err != nil {
		return backends{}, err
	}

	driver, err := neo4j.NewDriverWithContext(
		envOr("PASTURE_NEO4J_URI", "bolt://neo4j:7687"),
		neo4j.BasicAuth(envOr("PASTURE_NEO4J_USER", "neo4j"), os.Getenv("PASTURE_NEO4J_PASSWORD"), ""),
	)
	if err != nil {
		return backends{}, err
	}

	series := stores.NewInfluxSeriesStore(influxClient, influxOrg, influxBucket)
	return backends{
		series:   series,
		cache:    stores.NewRedisCache(rdb, stores.CacheTTL),
		alerts:   stores.NewRedisAlertStream(rdb),
		catalog:  catalog,
		writer:   catalog,
		graph:    stores.NewNeo4jGraph(driver),
		schedule: stores.NewRedisSchedule(rdb),
		close: func() {
			influxClient.Close()
			_ = rdb.Close()
			_ = mongoClient.Disconnect(context.Background())
			_ = driver.Close(context.Background())
		},
	}, nil
}

// embeddedBackends wires the single-node mode: Badger for the cache and
// alert stream, everything else in process. Meant for demos and local
// development without the database fleet.
func embeddedBackends(opts Options) (backends, error) {
	db, err := stores.OpenBadger(opts.DataDir)
	if err != nil {
		return backends{}, err
	}
	alerts, err := stores.NewBadgerAlertStream(db)
	if err != nil {
		_ = db.Close()
		return backends{}, err
	}

	catalog := stores.NewMemoryCatalog()
	return backends{
		series:   stores.NewMemorySeriesStore(),
		cache:    stores.NewBadgerCache(db, stores.CacheTTL),
		alerts:   alerts,
		catalog:  catalog,
		writer:   catalog,
		graph:    stores.NewMemoryGraph(),
		schedule: stores.NewMemorySchedule(),
		close: func() {
			_ = alerts.Close()
			_ = db.Close()
		},
	}, nil
}

// waitForInflux blocks until the InfluxDB health check passes, retrying
// for up to 30 seconds before giving up.
func waitForInflux(client influxdb2.Client, log *slog.Logger) error {
	for i := 0; i < 10; i++ {
		health, err := client.Health(context.Background())
		if err == nil && health.Status == "pass" {
			log.Info("Connected to InfluxDB")
			return nil
		}
		log.Warn("InfluxDB not ready, retrying...", "attempt", i+1)
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("failed to connect to InfluxDB after all retries")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
