// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "testing"

func TestValidateFieldID_Valid(t *testing.T) {
	valid := []string{
		"field_001_01",
		"farm-003",
		"f",
		"sensor_ndvi_field_001_01",
	}

	for _, id := range valid {
		if err := ValidateFieldID(id); err != nil {
			t.Errorf("ValidateFieldID(%q) = %v, want nil", id, err)
		}
	}
}

func TestValidateFieldID_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"Field_001",       // uppercase
		"1field",          // starts with digit
		"_field",          // starts with underscore
		`field") |> drop`, // Flux injection attempt
		"field 001",       // whitespace
	}

	for _, id := range invalid {
		if err := ValidateFieldID(id); err == nil {
			t.Errorf("ValidateFieldID(%q) = nil, want error", id)
		}
	}
}

func TestValidateMetricType(t *testing.T) {
	if err := ValidateMetricType("soil_moisture"); err != nil {
		t.Errorf("soil_moisture should be valid: %v", err)
	}
	if err := ValidateMetricType("grass-height"); err == nil {
		t.Error("hyphens should be rejected in metric types")
	}
	if err := ValidateMetricType(""); err == nil {
		t.Error("empty metric type should be rejected")
	}
}

func TestSanitizeFieldID(t *testing.T) {
	got, err := SanitizeFieldID("  Field_001_01  ")
	if err != nil {
		t.Fatalf("SanitizeFieldID returned error: %v", err)
	}
	if got != "field_001_01" {
		t.Errorf("SanitizeFieldID = %q, want %q", got, "field_001_01")
	}

	if _, err := SanitizeFieldID("bad id"); err == nil {
		t.Error("SanitizeFieldID should reject ids with spaces")
	}
}
