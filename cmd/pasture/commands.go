// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/Kenan7/nosql-pasture/cmd/pasture/config"
)

// --- Global Command Variables ---
var (
	jsonOutput   bool
	alertLimit   int
	nearbyLon    float64
	nearbyLat    float64
	nearbyMeters int
	dueHours     int
	dueDate      string
	taskName     string

	rootCmd = &cobra.Command{
		Use:   "pasture",
		Short: "A cli to manage the pasture monitoring stack",
		Long: `Pasture is a tool for operating the pasture monitoring stack:
				field catalogs, rolling sensor aggregates, alerting, and
				maintenance scheduling.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading config: %v", err)
			}
		},
	}

	// --- Fields ---
	fieldsCmd = &cobra.Command{
		Use:   "fields",
		Short: "Inspect the field catalog and cached aggregates",
	}
	listFieldsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all cataloged fields",
		Run:   runListFields, // Defined in cmd_fields.go
	}
	showFieldCmd = &cobra.Command{
		Use:   "show [field_id]",
		Short: "Show one field's catalog entry",
		Args:  cobra.ExactArgs(1),
		Run:   runShowField, // Defined in cmd_fields.go
	}
	fieldMetricsCmd = &cobra.Command{
		Use:   "metrics [field_id]",
		Short: "Show a field's cached rolling aggregates per window",
		Args:  cobra.ExactArgs(1),
		Run:   runFieldMetrics, // Defined in cmd_fields.go
	}
	atRiskCmd = &cobra.Command{
		Use:   "at-risk",
		Short: "Score all fields against their cached 7-day means",
		Run:   runAtRisk, // Defined in cmd_fields.go
	}
	nearbyCmd = &cobra.Command{
		Use:   "nearby",
		Short: "Find fields near a coordinate",
		Run:   runNearby, // Defined in cmd_fields.go
	}

	// --- Alerts ---
	alertsCmd = &cobra.Command{
		Use:   "alerts",
		Short: "Inspect the alert stream",
	}
	recentAlertsCmd = &cobra.Command{
		Use:   "recent",
		Short: "Show the newest alert log entries, raised and cleared alike",
		Run:   runRecentAlerts, // Defined in cmd_alerts.go
	}
	activeAlertsCmd = &cobra.Command{
		Use:   "active [field_id]",
		Short: "Show a field's currently active alerts",
		Args:  cobra.ExactArgs(1),
		Run:   runActiveAlerts, // Defined in cmd_alerts.go
	}

	// --- Cycle ---
	cycleCmd = &cobra.Command{
		Use:   "cycle",
		Short: "Control the aggregation cycle",
	}
	runCycleCmd = &cobra.Command{
		Use:   "run",
		Short: "Trigger one aggregation sweep over every field now",
		Run:   runCycleNow, // Defined in cmd_cycle.go
	}

	// --- Maintenance ---
	maintenanceCmd = &cobra.Command{
		Use:   "maintenance",
		Short: "Manage the field maintenance schedule",
	}
	scheduleMaintenanceCmd = &cobra.Command{
		Use:   "schedule [field_id]",
		Short: "Schedule a maintenance task for a field",
		Args:  cobra.ExactArgs(1),
		Run:   runScheduleMaintenance, // Defined in cmd_maintenance.go
	}
	dueMaintenanceCmd = &cobra.Command{
		Use:   "due",
		Short: "List maintenance work due within a window",
		Run:   runDueMaintenance, // Defined in cmd_maintenance.go
	}
	completeMaintenanceCmd = &cobra.Command{
		Use:   "complete [field_id]",
		Short: "Mark a field's scheduled task as done",
		Args:  cobra.ExactArgs(1),
		Run:   runCompleteMaintenance, // Defined in cmd_maintenance.go
	}

	// --- Health ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether the aggregator service is reachable",
		Run:   runHealth, // Defined in cmd_cycle.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output raw JSON for scripting")

	rootCmd.AddCommand(fieldsCmd)
	fieldsCmd.AddCommand(listFieldsCmd)
	fieldsCmd.AddCommand(showFieldCmd)
	fieldsCmd.AddCommand(fieldMetricsCmd)
	fieldsCmd.AddCommand(atRiskCmd)
	fieldsCmd.AddCommand(nearbyCmd)
	nearbyCmd.Flags().Float64Var(&nearbyLon, "lon", 0, "Longitude of the search center")
	nearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "Latitude of the search center")
	nearbyCmd.Flags().IntVar(&nearbyMeters, "max-meters", 10000, "Search radius in meters")
	_ = nearbyCmd.MarkFlagRequired("lon")
	_ = nearbyCmd.MarkFlagRequired("lat")

	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(recentAlertsCmd)
	recentAlertsCmd.Flags().IntVar(&alertLimit, "limit", 50, "Maximum number of log entries")
	alertsCmd.AddCommand(activeAlertsCmd)

	rootCmd.AddCommand(cycleCmd)
	cycleCmd.AddCommand(runCycleCmd)

	rootCmd.AddCommand(maintenanceCmd)
	maintenanceCmd.AddCommand(scheduleMaintenanceCmd)
	scheduleMaintenanceCmd.Flags().StringVar(&taskName, "task", "", "Task name, e.g. soil_test")
	scheduleMaintenanceCmd.Flags().StringVar(&dueDate, "due", "", "Due time (RFC3339)")
	_ = scheduleMaintenanceCmd.MarkFlagRequired("task")
	_ = scheduleMaintenanceCmd.MarkFlagRequired("due")
	maintenanceCmd.AddCommand(dueMaintenanceCmd)
	dueMaintenanceCmd.Flags().IntVar(&dueHours, "hours", 168, "Look-ahead window in hours")
	maintenanceCmd.AddCommand(completeMaintenanceCmd)
	completeMaintenanceCmd.Flags().StringVar(&taskName, "task", "", "Task name to complete")
	_ = completeMaintenanceCmd.MarkFlagRequired("task")

	rootCmd.AddCommand(healthCmd)
}
