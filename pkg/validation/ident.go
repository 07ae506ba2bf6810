// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for identifiers that are interpolated into
// database queries (Flux range queries, Cypher statements, Redis key names).
// Using these validators prevents injection attacks and malformed key spaces.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern matches valid pasture identifiers (field IDs, farm IDs, sensor IDs).
// Allows: lowercase letters, digits, underscores, hyphens.
// Must start with a letter. Max length: 64 characters.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]{0,63}$`)

// metricPattern matches valid metric type names (soil_moisture, ndvi, ...).
// Stricter than identPattern: no hyphens, max 32 characters.
var metricPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// ValidateFieldID validates a field identifier to prevent query injection.
//
// Valid field IDs:
//   - 1-64 characters
//   - Lowercase letters a-z, digits 0-9
//   - Underscores and hyphens after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateFieldID(fieldID); err != nil {
//	    return nil, fmt.Errorf("invalid field id: %w", err)
//	}
//	// Safe to use in a Flux query
func ValidateFieldID(fieldID string) error {
	if fieldID == "" {
		return fmt.Errorf("field id cannot be empty")
	}

	if !identPattern.MatchString(fieldID) {
		return fmt.Errorf("invalid field id format: %q (must be 1-64 lowercase alphanumeric chars, underscores, or hyphens)", fieldID)
	}

	return nil
}

// ValidateMetricType validates a metric type name.
// Metric types are used both as query filters and as Redis hash fields.
func ValidateMetricType(metricType string) error {
	if metricType == "" {
		return fmt.Errorf("metric type cannot be empty")
	}

	if !metricPattern.MatchString(metricType) {
		return fmt.Errorf("invalid metric type format: %q (must be 1-32 lowercase alphanumeric chars or underscores)", metricType)
	}

	return nil
}

// SanitizeFieldID normalizes and validates a field identifier.
// Returns the lowercase identifier if valid, or an error if invalid.
//
// Use this at the boundary where external input enters the pipeline:
//
//	safeID, err := validation.SanitizeFieldID(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeFieldID(fieldID string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(fieldID))
	if err := ValidateFieldID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
