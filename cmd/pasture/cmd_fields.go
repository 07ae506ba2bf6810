// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
	"github.com/Kenan7/nosql-pasture/services/aggregator/handlers"
)

// =============================================================================
// FIELD COMMANDS
// =============================================================================

// runListFields prints every cataloged field.
//
// # Description
//
// Fetches /v1/fields and renders a one-line-per-field table, or the raw
// JSON body with --json.
func runListFields(cmd *cobra.Command, args []string) {
	body, err := apiGet("/v1/fields")
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	var resp struct {
		Fields []datatypes.Field `json:"fields"`
		Count  int               `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fail(fmt.Errorf("failed to decode the field list: %w", err))
	}
	fmt.Printf("%-16s %-12s %-20s %-10s %8s\n", "FIELD", "FARM", "NAME", "SOIL", "HA")
	for _, f := range resp.Fields {
		fmt.Printf("%-16s %-12s %-20s %-10s %8.1f\n",
			f.FieldID, f.FarmID, f.Name, f.SoilType, f.AreaHectares)
	}
	fmt.Printf("\n%d fields\n", resp.Count)
}

func runShowField(cmd *cobra.Command, args []string) {
	body, err := apiGet("/v1/fields/" + url.PathEscape(args[0]))
	if err != nil {
		fail(err)
	}
	printJSON(body)
}

// runFieldMetrics prints a field's cached rolling aggregates, one row
// per metric and window.
func runFieldMetrics(cmd *cobra.Command, args []string) {
	body, err := apiGet("/v1/fields/" + url.PathEscape(args[0]) + "/metrics")
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	var resp handlers.FieldMetricsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		fail(fmt.Errorf("failed to decode the metrics response: %w", err))
	}
	metrics := make([]string, 0, len(resp.Metrics))
	for m := range resp.Metrics {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	fmt.Printf("Field %s\n\n", resp.FieldID)
	fmt.Printf("%-22s %-6s %10s %10s %10s %10s %6s\n",
		"METRIC", "WINDOW", "MEAN", "MIN", "MAX", "SLOPE/D", "N")
	for _, metric := range metrics {
		windows := make([]string, 0, len(resp.Metrics[metric]))
		for w := range resp.Metrics[metric] {
			windows = append(windows, w)
		}
		sort.Strings(windows)
		for _, w := range windows {
			s := resp.Metrics[metric][w]
			fmt.Printf("%-22s %-6s %10.2f %10.2f %10.2f %10.3f %6d\n",
				metric, w, s.Mean, s.Min, s.Max, s.TrendSlope, s.SampleCount)
		}
	}
}

func runAtRisk(cmd *cobra.Command, args []string) {
	body, err := apiGet("/v1/fields/at-risk")
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	var resp struct {
		AtRisk []handlers.AtRiskField `json:"at_risk"`
		Count  int                    `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fail(fmt.Errorf("failed to decode the at-risk report: %w", err))
	}
	if resp.Count == 0 {
		fmt.Println("No fields at risk.")
		return
	}
	for _, entry := range resp.AtRisk {
		fmt.Printf("%-16s score %d  %s\n", entry.FieldID, entry.RiskScore, entry.Name)
		for _, factor := range entry.RiskFactors {
			fmt.Printf("    - %s\n", factor)
		}
	}
	fmt.Printf("\n%d fields at risk\n", resp.Count)
}

func runNearby(cmd *cobra.Command, args []string) {
	query := url.Values{}
	query.Set("lon", fmt.Sprintf("%g", nearbyLon))
	query.Set("lat", fmt.Sprintf("%g", nearbyLat))
	query.Set("max_meters", fmt.Sprintf("%d", nearbyMeters))
	body, err := apiGet("/v1/fields/nearby?" + query.Encode())
	if err != nil {
		fail(err)
	}
	printJSON(body)
}
