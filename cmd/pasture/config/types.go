// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

type PastureConfig struct {
	// Server: where the aggregator API is listening
	Server ServerConfig `yaml:"server"`

	// Output: default formatting for command output
	Output OutputConfig `yaml:"output"`
}

type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`        // e.g. http://localhost:8080
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-request HTTP timeout
}

type OutputConfig struct {
	// JSON switches all commands to machine-readable output.
	JSON bool `yaml:"json"`
}

func DefaultConfig() PastureConfig {
	return PastureConfig{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{JSON: false},
	}
}
