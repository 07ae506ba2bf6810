// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// Badger key layout. The log sequence gives stable lexicographic order
// so reverse iteration yields newest first.
const (
	badgerCachePrefix  = "cache:"
	badgerActivePrefix = "alert:active:"
	badgerLogPrefix    = "alert:log:"
	badgerSeqKey       = "alert:seq"
)

// errAlreadyActive aborts the append transaction without an error result.
var errAlreadyActive = errors.New("alert already active")

// OpenBadger opens a persistent Badger database at path, creating the
// directory as needed. Badger's own chatty logger is disabled.
func OpenBadger(path string) (*badger.DB, error) {
	if path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", path, err)
	}
	return badger.Open(badger.DefaultOptions(path).WithLogger(nil))
}

// OpenBadgerInMemory opens a throwaway in-memory database for tests and
// demo runs.
func OpenBadgerInMemory() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

// ===== Metrics cache =====

// BadgerCache implements MetricsCache on an embedded Badger database.
// The whole snapshot set is one entry, so Put is atomic by construction,
// and Badger's native entry TTL handles expiry.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	if ttl <= 0 {
		ttl = CacheTTL
	}
	return &BadgerCache{db: db, ttl: ttl}
}

func (c *BadgerCache) Put(_ context.Context, fieldID string, set datatypes.SnapshotSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return datatypes.WriteFailure("badger", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(badgerCachePrefix+fieldID), raw).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return datatypes.WriteFailure("badger", err)
	}
	return nil
}

func (c *BadgerCache) Get(_ context.Context, fieldID string) (datatypes.SnapshotSet, error) {
	var set datatypes.SnapshotSet
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerCachePrefix + fieldID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &set)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, datatypes.ErrNotFound
	}
	if err != nil {
		return nil, datatypes.InputUnavailable("badger", err)
	}
	return set, nil
}

// ===== Alert stream =====

// BadgerAlertStream implements the alert log and active index on one
// embedded database. Dedup check and log write share a transaction, so
// the raise-once invariant holds without external coordination.
type BadgerAlertStream struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerAlertStream(db *badger.DB) (*BadgerAlertStream, error) {
	seq, err := db.GetSequence([]byte(badgerSeqKey), 128)
	if err != nil {
		return nil, fmt.Errorf("open alert sequence: %w", err)
	}
	return &BadgerAlertStream{db: db, seq: seq}, nil
}

// Close releases the unused tail of the sequence lease.
func (a *BadgerAlertStream) Close() error {
	return a.seq.Release()
}

func (a *BadgerAlertStream) Append(_ context.Context, event datatypes.AlertEvent) (bool, error) {
	event.Status = datatypes.AlertActive
	raw, err := json.Marshal(event)
	if err != nil {
		return false, datatypes.WriteFailure("badger", err)
	}

	activeKey := activeAlertKey(event.FieldID, event.AlertType)

	err = a.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(activeKey); err == nil {
			return errAlreadyActive
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(activeKey, raw); err != nil {
			return err
		}
		return a.appendLog(txn, raw)
	})
	if errors.Is(err, errAlreadyActive) {
		return false, nil
	}
	if err != nil {
		return false, datatypes.WriteFailure("badger", err)
	}
	return true, nil
}

func (a *BadgerAlertStream) Clear(_ context.Context, fieldID, alertType string) (bool, error) {
	cleared := false
	err := a.db.Update(func(txn *badger.Txn) error {
		key := activeAlertKey(fieldID, alertType)
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		var event datatypes.AlertEvent
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &event)
		})
		if err != nil {
			return err
		}

		// The cleared transition goes into the log before the active
		// entry is removed.
		event.Status = datatypes.AlertCleared
		raw, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := a.appendLog(txn, raw); err != nil {
			return err
		}

		cleared = true
		return txn.Delete(key)
	})
	if err != nil {
		return false, datatypes.WriteFailure("badger", err)
	}
	return cleared, nil
}

// appendLog writes one entry to the capped log inside txn. The sequence
// number is taken only once the caller has committed to writing, so every
// consumed number corresponds to a written key and the arithmetic eviction
// below reaches every entry exactly once.
func (a *BadgerAlertStream) appendLog(txn *badger.Txn, raw []byte) error {
	seq, err := a.seq.Next()
	if err != nil {
		return err
	}
	logKey := fmt.Sprintf("%s%020d", badgerLogPrefix, seq)
	if err := txn.Set([]byte(logKey), raw); err != nil {
		return err
	}
	// Enforce the history cap: sequential writes mean at most one entry
	// falls off per write.
	if seq >= MaxAlertHistory {
		evicted := fmt.Sprintf("%s%020d", badgerLogPrefix, seq-MaxAlertHistory)
		if err := txn.Delete([]byte(evicted)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
	}
	return nil
}

func (a *BadgerAlertStream) Active(_ context.Context, fieldID string) ([]datatypes.AlertEvent, error) {
	prefix := []byte(badgerActivePrefix + fieldID + ":")
	var out []datatypes.AlertEvent

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ev datatypes.AlertEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, datatypes.InputUnavailable("badger", err)
	}
	return out, nil
}

func (a *BadgerAlertStream) Recent(_ context.Context, limit int) ([]datatypes.AlertEvent, error) {
	if limit <= 0 || limit > MaxAlertHistory {
		limit = MaxAlertHistory
	}
	prefix := []byte(badgerLogPrefix)
	var out []datatypes.AlertEvent

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek needs a key past the end of the prefix.
		seekKey := append(bytes.Clone(prefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var ev datatypes.AlertEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, datatypes.InputUnavailable("badger", err)
	}
	return out, nil
}

func activeAlertKey(fieldID, alertType string) []byte {
	return []byte(badgerActivePrefix + fieldID + ":" + alertType)
}
