// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy. Each class has a
// distinct handling policy:
//
//   - ErrInsufficientData: a window had too few points. The window's
//     snapshot is omitted and the cycle continues.
//   - ErrInputUnavailable: a store was unreachable or returned nothing
//     usable. The field's cycle is skipped and retried next tick.
//   - ErrWriteFailure: a cache or alert-log write failed. Logged only;
//     the next cycle's recomputation reconciles the sinks.
//   - ErrNotFound: a lookup missed (expired cache entry, unknown field).
var (
	ErrInsufficientData = errors.New("insufficient data for window")
	ErrInputUnavailable = errors.New("input store unavailable")
	ErrWriteFailure     = errors.New("sink write failed")
	ErrNotFound         = errors.New("not found")
)

// ConfigError reports a malformed rule or store configuration. It is
// fatal at startup and must never surface at cycle time: rule sets are
// validated before the scheduler starts.
type ConfigError struct {
	Component string
	Reason    string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Reason)
}

// NewConfigError builds a ConfigError for the named component.
func NewConfigError(component, format string, args ...any) *ConfigError {
	return &ConfigError{
		Component: component,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// InputUnavailable wraps a store error into the input-unavailable class,
// keeping the cause in the chain for errors.Is/As.
func InputUnavailable(store string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrInputUnavailable, store, cause)
}

// WriteFailure wraps a sink error into the write-failure class.
func WriteFailure(sink string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrWriteFailure, sink, cause)
}
