// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Kenan7/nosql-pasture/pkg/logging"
	"github.com/Kenan7/nosql-pasture/services/aggregator/server"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		JSON:    true,
		Service: "aggregator",
		LogDir:  os.Getenv("PASTURE_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	opts, err := server.OptionsFromEnv()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	opts.Logger = logger.Slog()

	if err := server.Run(context.Background(), opts); err != nil {
		logger.Error("Aggregator stopped", "error", err)
		os.Exit(1)
	}
}
