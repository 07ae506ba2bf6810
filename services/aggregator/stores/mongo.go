// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// MongoCatalog is the production field and farm metadata store.
//
// # Assumptions
//
//   - EnsureIndexes has run once so the boundary 2dsphere index exists
//     before any Nearby call.
type MongoCatalog struct {
	farms      *mongo.Collection
	fields     *mongo.Collection
	treatments *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{
		farms:      db.Collection("farms"),
		fields:     db.Collection("fields"),
		treatments: db.Collection("treatments"),
	}
}

// EnsureIndexes creates the unique ID indexes and the geospatial index
// used by Nearby. Safe to call on every startup.
func (c *MongoCatalog) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := c.farms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "farm_id", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("farms index: %w", err)
	}
	_, err = c.fields.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "field_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "boundary", Value: "2dsphere"}}},
	})
	if err != nil {
		return fmt.Errorf("fields indexes: %w", err)
	}
	_, err = c.treatments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "field_id", Value: 1}, {Key: "event_date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("treatments index: %w", err)
	}
	return nil
}

func (c *MongoCatalog) UpsertFarm(ctx context.Context, farm datatypes.Farm) error {
	_, err := c.farms.ReplaceOne(ctx,
		bson.M{"farm_id": farm.FarmID}, farm, options.Replace().SetUpsert(true))
	if err != nil {
		return datatypes.WriteFailure("mongo", err)
	}
	return nil
}

func (c *MongoCatalog) UpsertField(ctx context.Context, field datatypes.Field) error {
	_, err := c.fields.ReplaceOne(ctx,
		bson.M{"field_id": field.FieldID}, field, options.Replace().SetUpsert(true))
	if err != nil {
		return datatypes.WriteFailure("mongo", err)
	}
	return nil
}

func (c *MongoCatalog) InsertTreatment(ctx context.Context, ev datatypes.TreatmentEvent) error {
	if _, err := c.treatments.InsertOne(ctx, ev); err != nil {
		return datatypes.WriteFailure("mongo", err)
	}
	return nil
}

func (c *MongoCatalog) Field(ctx context.Context, fieldID string) (datatypes.Field, error) {
	var f datatypes.Field
	err := c.fields.FindOne(ctx, bson.M{"field_id": fieldID}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return datatypes.Field{}, datatypes.ErrNotFound
	}
	if err != nil {
		return datatypes.Field{}, datatypes.InputUnavailable("mongo", err)
	}
	return f, nil
}

func (c *MongoCatalog) Fields(ctx context.Context) ([]datatypes.Field, error) {
	cur, err := c.fields.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "field_id", Value: 1}}))
	if err != nil {
		return nil, datatypes.InputUnavailable("mongo", err)
	}
	defer cur.Close(ctx)

	var out []datatypes.Field
	if err := cur.All(ctx, &out); err != nil {
		return nil, datatypes.InputUnavailable("mongo", err)
	}
	return out, nil
}

// Nearby returns fields whose boundary lies within maxMeters of the
// given point, nearest first, via the 2dsphere index.
func (c *MongoCatalog) Nearby(ctx context.Context, lon, lat, maxMeters float64) ([]datatypes.Field, error) {
	filter := bson.M{
		"boundary": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lon, lat},
				},
				"$maxDistance": maxMeters,
			},
		},
	}
	cur, err := c.fields.Find(ctx, filter)
	if err != nil {
		return nil, datatypes.InputUnavailable("mongo", err)
	}
	defer cur.Close(ctx)

	var out []datatypes.Field
	if err := cur.All(ctx, &out); err != nil {
		return nil, datatypes.InputUnavailable("mongo", err)
	}
	return out, nil
}
