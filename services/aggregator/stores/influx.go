// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Kenan7/nosql-pasture/pkg/validation"
	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// sensorMeasurement is the InfluxDB measurement holding raw readings.
const sensorMeasurement = "sensor_readings"

// InfluxSeriesStore is the production sensor series backend.
//
// # Description
//
// Readings are stored one point per reading under the sensor_readings
// measurement, tagged by field_id, sensor_id, metric_type and quality,
// with the numeric value in the "value" field. Field and metric
// identifiers are validated before interpolation into Flux to prevent
// query injection.
//
// # Assumptions
//
//   - The bucket retention policy enforces the 90-day horizon; the store
//     never deletes points itself.
type InfluxSeriesStore struct {
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

// NewInfluxSeriesStore builds a store over an existing client connection.
func NewInfluxSeriesStore(client influxdb2.Client, org, bucket string) *InfluxSeriesStore {
	return &InfluxSeriesStore{
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
		bucket:   bucket,
	}
}

// Write persists a batch of readings in one blocking call.
func (s *InfluxSeriesStore) Write(ctx context.Context, readings []datatypes.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		p := influxdb2.NewPoint(
			sensorMeasurement,
			map[string]string{
				"field_id":    r.FieldID,
				"sensor_id":   r.SensorID,
				"metric_type": r.MetricType,
				"quality":     strconv.Itoa(r.Quality),
			},
			map[string]interface{}{
				"value": r.Value,
			},
			r.Timestamp,
		)
		points = append(points, p)
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return datatypes.WriteFailure("influx", err)
	}
	return nil
}

// Read returns good-and-bad readings for one field and metric since the
// cutoff, newest first. Quality filtering is the aggregator's job; the
// store returns what the sensors recorded.
func (s *InfluxSeriesStore) Read(ctx context.Context, fieldID, metricType string, since time.Time) ([]datatypes.Reading, error) {
	fieldID, err := validation.SanitizeFieldID(fieldID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateMetricType(metricType); err != nil {
		return nil, err
	}

	// The bucket only retains RetentionHorizon of raw readings; asking for
	// more is silently truncated to the horizon.
	if horizon := time.Now().Add(-datatypes.RetentionHorizon); since.Before(horizon) {
		since = horizon
	}

	query := fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  |> filter(fn: (r) => r.field_id == "%s")
		  |> filter(fn: (r) => r.metric_type == "%s")
		  |> filter(fn: (r) => r._field == "value")
		  |> sort(columns: ["_time"], desc: true)
	`, s.bucket, since.UTC().Format(time.RFC3339), sensorMeasurement, fieldID, metricType)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, datatypes.InputUnavailable("influx", err)
	}
	// Guard against nil result (can happen with empty query results)
	if result == nil {
		return nil, nil
	}

	var readings []datatypes.Reading
	for result.Next() {
		record := result.Record()
		r := datatypes.Reading{
			FieldID:    fieldID,
			MetricType: metricType,
			Timestamp:  record.Time(),
		}
		if v, ok := record.Value().(float64); ok {
			r.Value = v
		}
		if sensorID, ok := record.ValueByKey("sensor_id").(string); ok {
			r.SensorID = sensorID
		}
		if quality, ok := record.ValueByKey("quality").(string); ok {
			if q, err := strconv.Atoi(quality); err == nil {
				r.Quality = q
			}
		}
		readings = append(readings, r)
	}
	if result.Err() != nil {
		return nil, datatypes.InputUnavailable("influx", result.Err())
	}
	return readings, nil
}
