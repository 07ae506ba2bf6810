// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kenan7/nosql-pasture/services/aggregator/pipeline"
)

// TriggerCycle runs one synchronous aggregation sweep over the whole
// catalog. The scheduler's in-flight guard still applies, so a manual
// trigger cannot double-run a field a timer sweep is already working on.
func TriggerCycle(sched *pipeline.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sched.RunNow(c.Request.Context()); err != nil {
			slog.Error("Manual aggregation sweep failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweep failed", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	}
}
