// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// Neo4jGraph records advisory rules, grass species and treatments as a
// property graph. All writes are Cypher MERGEs, so seeding is idempotent
// and re-running it converges instead of duplicating nodes.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraph(driver neo4j.DriverWithContext) *Neo4jGraph {
	return &Neo4jGraph{driver: driver}
}

func (g *Neo4jGraph) UpsertAdvisoryRule(ctx context.Context, rule datatypes.AdvisoryRule) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MERGE (r:AdvisoryRule {rule_id: $rule_id})
		SET r.description = $description,
		    r.priority = $priority,
		    r.conditions = $conditions,
		    r.action = $action
	`, map[string]any{
		"rule_id":     rule.RuleID,
		"description": rule.Description,
		"priority":    rule.Priority,
		"conditions":  rule.Conditions,
		"action":      rule.Action,
	}, neo4j.EagerResultTransformer)
	if err != nil {
		return datatypes.WriteFailure("neo4j", err)
	}
	return nil
}

func (g *Neo4jGraph) LinkRuleSpecies(ctx context.Context, ruleID, species string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MERGE (r:AdvisoryRule {rule_id: $rule_id})
		MERGE (s:GrassSpecies {name: $species})
		MERGE (r)-[:APPLIES_TO]->(s)
	`, map[string]any{
		"rule_id": ruleID,
		"species": species,
	}, neo4j.EagerResultTransformer)
	if err != nil {
		return datatypes.WriteFailure("neo4j", err)
	}
	return nil
}

func (g *Neo4jGraph) UpsertTreatment(ctx context.Context, ev datatypes.TreatmentEvent) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MERGE (f:Field {field_id: $field_id})
		MERGE (t:Treatment {event_id: $event_id})
		SET t.event_type = $event_type,
		    t.event_date = $event_date
		MERGE (f)-[:RECEIVED]->(t)
	`, map[string]any{
		"field_id":   ev.FieldID,
		"event_id":   ev.EventID,
		"event_type": ev.EventType,
		"event_date": ev.EventDate.UTC(),
	}, neo4j.EagerResultTransformer)
	if err != nil {
		return datatypes.WriteFailure("neo4j", err)
	}
	return nil
}

// Close shuts the underlying driver down.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
