// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Kenan7/nosql-pasture/cmd/pasture/config"
)

const defaultServerURL = "http://localhost:8080"

// getServerBaseURL resolves the aggregator API address.
func getServerBaseURL() string {
	// 1. Priority: Environment Variable (Used by Tests & Docker overrides)
	if url := os.Getenv("PASTURE_SERVER_URL"); url != "" {
		return url
	}
	// 2. Config file
	if config.Global.Server.BaseURL != "" {
		return config.Global.Server.BaseURL
	}
	// 3. Default
	return defaultServerURL
}

func apiClient() *http.Client {
	timeout := time.Duration(config.Global.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// apiGet fetches a path off the server base URL and returns the body.
// Non-2xx statuses are returned as errors carrying the server's message.
func apiGet(path string) ([]byte, error) {
	url := getServerBaseURL() + path
	resp, err := apiClient().Get(url)
	if err != nil {
		return nil, fmt.Errorf("could not reach the aggregator at %s: %w", url, err)
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

// apiPost sends a JSON payload. A nil payload sends an empty body.
func apiPost(path string, payload any) ([]byte, error) {
	url := getServerBaseURL() + path
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode the request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := apiClient().Post(url, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("could not reach the aggregator at %s: %w", url, err)
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return data, nil
}

// wantJSON reports whether output should be raw JSON, from the --json
// flag or the config default.
func wantJSON() bool {
	return jsonOutput || config.Global.Output.JSON
}

// printJSON pretty-prints a raw JSON body to stdout.
func printJSON(data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(buf.String())
}

// fail prints an error and exits non-zero.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
