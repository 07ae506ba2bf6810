// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kenan7/nosql-pasture/pkg/logging"
	"github.com/Kenan7/nosql-pasture/services/aggregator/generator"
	"github.com/Kenan7/nosql-pasture/services/aggregator/server"
)

// =============================================================================
// DAEMON AND SEED COMMANDS
// =============================================================================

// runDaemon starts the aggregator in this process.
//
// # Description
//
// Runs the scheduler and the HTTP API until interrupted. With --embedded
// the daemon needs no external databases: Badger holds the cache and
// alert log, and the catalog and series live in process, so pair it with
// --seed to have data to aggregate.
func runDaemon(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{
		Level:   logLevel(),
		Service: "aggregator",
		LogDir:  runLogDir,
	})
	defer logger.Close()

	opts := server.Options{
		Addr:     runAddr,
		Interval: runInterval,
		Seed:     runSeed,
		DataDir:  runDataDir,
		Logger:   logger.Slog(),
	}
	if runEmbedded {
		opts.Backend = server.BackendEmbedded
	}
	if err := server.Run(context.Background(), opts); err != nil {
		fail(err)
	}
}

// runSeedCommand loads a deterministic synthetic dataset into the
// configured backend. Against the production backend this writes the
// catalog to MongoDB, readings to InfluxDB, and treatments plus advisory
// rules to Neo4j. For the embedded backend use `pasture run --embedded
// --seed` instead; its catalog and series stores live inside the daemon
// process.
func runSeedCommand(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{
		Level:   logLevel(),
		Service: "seed",
	})
	defer logger.Close()

	cfg := generator.DefaultConfig()
	cfg.NumFarms = seedFarms
	cfg.Days = seedDays
	cfg.Seed = seedValue

	opts := server.Options{Logger: logger.Slog()}
	if err := server.Seed(context.Background(), opts, cfg); err != nil {
		fail(err)
	}
}

func logLevel() logging.Level {
	if runVerbose {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}

var (
	runAddr     string
	runInterval time.Duration
	runEmbedded bool
	runSeed     bool
	runDataDir  string
	runLogDir   string
	runVerbose  bool

	seedFarms int
	seedDays  int
	seedValue int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the aggregator daemon (scheduler + HTTP API) in this process",
	Run:   runDaemon,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load deterministic synthetic farms, readings, and treatments into the stores",
	Run:   runSeedCommand,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAddr, "addr", ":8080", "Listen address for the API")
	runCmd.Flags().DurationVar(&runInterval, "interval", 5*time.Minute, "Aggregation cycle interval")
	runCmd.Flags().BoolVar(&runEmbedded, "embedded", false, "Use the embedded single-node backend (no external databases)")
	runCmd.Flags().BoolVar(&runSeed, "seed", false, "Seed synthetic data before starting")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "./data", "Badger directory for the embedded backend")
	runCmd.Flags().StringVar(&runLogDir, "log-dir", "", "Also write JSON logs to this directory")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Debug-level logging")

	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVar(&seedFarms, "farms", 5, "Number of farms to generate")
	seedCmd.Flags().IntVar(&seedDays, "days", 30, "Days of sensor history per field")
	seedCmd.Flags().Int64Var(&seedValue, "rand-seed", 42, "Generator seed for reproducible datasets")
}
