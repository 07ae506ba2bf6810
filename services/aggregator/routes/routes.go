// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kenan7/nosql-pasture/services/aggregator/handlers"
	"github.com/Kenan7/nosql-pasture/services/aggregator/pipeline"
	"github.com/Kenan7/nosql-pasture/services/aggregator/stores"
)

// Deps bundles everything the API needs.
type Deps struct {
	Catalog   stores.FieldCatalog
	Cache     stores.MetricsCache
	Alerts    stores.AlertStream
	Schedule  stores.MaintenanceSchedule
	Scheduler *pipeline.Scheduler
	Clock     stores.Clock
}

// SetupRoutes registers the full API surface on router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	if deps.Clock == nil {
		deps.Clock = stores.SystemClock()
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		fields := v1.Group("/fields")
		{
			fields.GET("", handlers.ListFields(deps.Catalog))
			fields.GET("/at-risk", handlers.AtRiskFields(deps.Catalog, deps.Cache))
			fields.GET("/nearby", handlers.NearbyFields(deps.Catalog))
			fields.GET("/:field_id", handlers.GetField(deps.Catalog))
			fields.GET("/:field_id/metrics", handlers.GetFieldMetrics(deps.Cache))
			fields.GET("/:field_id/alerts", handlers.ActiveAlerts(deps.Alerts))
		}
		v1.GET("/alerts", handlers.RecentAlerts(deps.Alerts))
		v1.POST("/cycle/run", handlers.TriggerCycle(deps.Scheduler))
		maintenance := v1.Group("/maintenance")
		{
			maintenance.POST("", handlers.ScheduleMaintenance(deps.Schedule))
			maintenance.GET("/due", handlers.DueMaintenance(deps.Schedule, deps.Clock))
			maintenance.POST("/complete", handlers.CompleteMaintenance(deps.Schedule))
		}
	}
}
