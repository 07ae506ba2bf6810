// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// ===== Evaluator =====

// Evaluator runs a validated rule set over one field's inputs.
//
// # Description
//
// Construction validates the rule set once; a malformed set (empty alert
// type, nil predicate, duplicate alert type) is a deployment error and is
// reported as a ConfigError rather than surfacing mid-cycle. After
// construction Evaluate never fails.
//
// # Assumptions
//
//   - The rule set is fixed for the evaluator's lifetime.
//   - Evaluate is safe for concurrent use: rules and predicates are
//     read-only after construction.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator validates ruleSet and returns an evaluator over it.
//
// # Outputs
//
//   - *Evaluator: ready to use.
//   - error: a ConfigError naming the offending rule, or nil.
func NewEvaluator(ruleSet []Rule) (*Evaluator, error) {
	if len(ruleSet) == 0 {
		return nil, datatypes.NewConfigError("rules", "rule set is empty")
	}
	seen := make(map[string]struct{}, len(ruleSet))
	for i, r := range ruleSet {
		if r.AlertType == "" {
			return nil, datatypes.NewConfigError("rules", "rule %d has an empty alert type", i)
		}
		if r.Predicate == nil {
			return nil, datatypes.NewConfigError("rules", "rule %q has a nil predicate", r.AlertType)
		}
		if _, dup := seen[r.AlertType]; dup {
			return nil, datatypes.NewConfigError("rules", "duplicate alert type %q", r.AlertType)
		}
		seen[r.AlertType] = struct{}{}
	}

	rs := make([]Rule, len(ruleSet))
	copy(rs, ruleSet)
	return &Evaluator{rules: rs}, nil
}

// MustDefault returns an evaluator over DefaultRules, panicking on a
// validation failure. The built-in set is validated by tests, so a panic
// here means the binary itself is broken.
func MustDefault() *Evaluator {
	ev, err := NewEvaluator(DefaultRules())
	if err != nil {
		panic(err)
	}
	return ev
}

// Rules returns the evaluator's rule set in evaluation order. Callers
// must not mutate the returned slice.
func (e *Evaluator) Rules() []Rule {
	return e.rules
}

// Evaluate applies every rule to in and returns one decision per rule
// that could be evaluated, in rule-set order.
//
// # Description
//
// A breached rule yields a Raise decision carrying the observed value,
// the threshold it crossed and the matched severity band. A rule whose
// inputs were present but healthy yields a Clear decision: the alert
// stream turns that into a state transition only if an instance of the
// type is currently active. A rule whose required input is missing this
// cycle yields no decision at all, so stale alerts are neither
// re-raised nor spuriously cleared on data gaps.
func (e *Evaluator) Evaluate(in Inputs) []datatypes.AlertDecision {
	out := make([]datatypes.AlertDecision, 0, len(e.rules))
	for _, r := range e.rules {
		v := r.Predicate(in)
		if v.Missing {
			continue
		}
		d := datatypes.AlertDecision{AlertType: r.AlertType}
		if v.Breached {
			d.Kind = datatypes.DecisionRaise
			d.Value = v.Value
			d.Threshold = v.Threshold
			d.Severity = v.Severity
		} else {
			d.Kind = datatypes.DecisionClear
		}
		out = append(out, d)
	}
	return out
}
