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
	"time"

	"github.com/spf13/cobra"

	"github.com/Kenan7/nosql-pasture/services/aggregator/handlers"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// =============================================================================
// MAINTENANCE COMMANDS
// =============================================================================

func runScheduleMaintenance(cmd *cobra.Command, args []string) {
	due, err := time.Parse(time.RFC3339, dueDate)
	if err != nil {
		fail(fmt.Errorf("--due must be RFC3339, e.g. 2025-07-01T09:00:00Z: %w", err))
	}
	body, err := apiPost("/v1/maintenance", handlers.ScheduleMaintenanceRequest{
		FieldID: args[0],
		Task:    taskName,
		Due:     due,
	})
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	fmt.Printf("Scheduled %q for %s, due %s.\n", taskName, args[0], due.Format(time.RFC3339))
}

func runCompleteMaintenance(cmd *cobra.Command, args []string) {
	body, err := apiPost("/v1/maintenance/complete", handlers.CompleteMaintenanceRequest{
		FieldID: args[0],
		Task:    taskName,
	})
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	var resp struct {
		Completed bool `json:"completed"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fail(fmt.Errorf("failed to decode the completion response: %w", err))
	}
	if resp.Completed {
		fmt.Printf("Completed %q for %s.\n", taskName, args[0])
	} else {
		fmt.Printf("No scheduled %q found for %s.\n", taskName, args[0])
	}
}

func runDueMaintenance(cmd *cobra.Command, args []string) {
	body, err := apiGet(fmt.Sprintf("/v1/maintenance/due?hours=%d", dueHours))
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	var resp struct {
		Items []stores.MaintenanceItem `json:"items"`
		Count int                      `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		fail(fmt.Errorf("failed to decode the due list: %w", err))
	}
	if resp.Count == 0 {
		fmt.Printf("Nothing due in the next %d hours.\n", dueHours)
		return
	}
	fmt.Printf("%-20s %-16s %s\n", "DUE", "FIELD", "TASK")
	for _, item := range resp.Items {
		fmt.Printf("%-20s %-16s %s\n",
			item.Due.Format("2006-01-02 15:04:05"), item.FieldID, item.Task)
	}
	fmt.Printf("\n%d items\n", resp.Count)
}
