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

	"github.com/spf13/cobra"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// =============================================================================
// ALERT COMMANDS
// =============================================================================

func runRecentAlerts(cmd *cobra.Command, args []string) {
	body, err := apiGet(fmt.Sprintf("/v1/alerts?limit=%d", alertLimit))
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	printAlertTable(body)
}

func runActiveAlerts(cmd *cobra.Command, args []string) {
	body, err := apiGet("/v1/fields/" + url.PathEscape(args[0]) + "/alerts")
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	printAlertTable(body)
}

func printAlertTable(body []byte) {
	var resp struct {
		Alerts []datatypes.AlertEvent `json:"alerts"`
		Count  int                    `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fail(fmt.Errorf("failed to decode the alert response: %w", err))
	}
	if resp.Count == 0 {
		fmt.Println("No alerts.")
		return
	}
	fmt.Printf("%-20s %-16s %-24s %-8s %-8s %10s\n",
		"RAISED", "FIELD", "TYPE", "SEVERITY", "STATUS", "VALUE")
	for _, a := range resp.Alerts {
		fmt.Printf("%-20s %-16s %-24s %-8s %-8s %10.2f\n",
			a.RaisedAt.Format("2006-01-02 15:04:05"),
			a.FieldID, a.AlertType, a.Severity, a.Status, a.Value)
	}
	fmt.Printf("\n%d alerts\n", resp.Count)
}
