// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runCycleNow asks the aggregator to sweep every field immediately
// instead of waiting for the next scheduled tick.
func runCycleNow(cmd *cobra.Command, args []string) {
	body, err := apiPost("/v1/cycle/run", nil)
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	fmt.Println("Aggregation cycle completed.")
}

func runHealth(cmd *cobra.Command, args []string) {
	body, err := apiGet("/health")
	if err != nil {
		fail(err)
	}
	if wantJSON() {
		printJSON(body)
		return
	}
	fmt.Printf("Aggregator at %s is healthy.\n", getServerBaseURL())
}
