// Copyright (C) 2025 Kenan (github.com/Kenan7)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kenan7/nosql-pasture/services/aggregator/datatypes"
)

// Redis key layout. The alert stream is one global log; the active index
// and cache are per field.
const (
	redisCacheKeyFmt  = "pasture:field:%s"
	redisAlertStream  = "pasture:alerts"
	redisActiveKeyFmt = "pasture:alerts:active:%s"
	redisScheduleKey  = "pasture:maintenance"
)

// ===== Metrics cache =====

// RedisCache stores each field's snapshot set as a hash keyed by
// "{metric}:{window}" with a key-level TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = CacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Put replaces the field's hash in one transaction so readers never see
// a half-written set, then resets the TTL.
func (c *RedisCache) Put(ctx context.Context, fieldID string, set datatypes.SnapshotSet) error {
	key := fmt.Sprintf(redisCacheKeyFmt, fieldID)

	fields := make(map[string]interface{}, len(set)*3)
	for metricType, byWindow := range set {
		for w, snap := range byWindow {
			raw, err := json.Marshal(snap)
			if err != nil {
				return datatypes.WriteFailure("redis", err)
			}
			fields[fmt.Sprintf("%s:%s", metricType, w)] = raw
		}
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return datatypes.WriteFailure("redis", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, fieldID string) (datatypes.SnapshotSet, error) {
	key := fmt.Sprintf(redisCacheKeyFmt, fieldID)
	raw, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, datatypes.InputUnavailable("redis", err)
	}
	if len(raw) == 0 {
		// Expired keys and unknown fields look the same.
		return nil, datatypes.ErrNotFound
	}

	set := datatypes.SnapshotSet{}
	for _, v := range raw {
		var snap datatypes.AggregateSnapshot
		if err := json.Unmarshal([]byte(v), &snap); err != nil {
			return nil, fmt.Errorf("corrupt cache entry for %s: %w", fieldID, err)
		}
		set.Add(snap)
	}
	return set, nil
}

// ===== Alert stream =====

// RedisAlertStream logs alerts to a capped Redis stream and keeps the
// per-field active index in a hash.
//
// Append claims the active slot with HSETNX before touching the stream,
// so two concurrent cycles for the same field cannot double-log the same
// alert type. Both raise and clear transitions land in the stream, which
// is trimmed to MaxAlertHistory on every write.
type RedisAlertStream struct {
	rdb *redis.Client
}

func NewRedisAlertStream(rdb *redis.Client) *RedisAlertStream {
	return &RedisAlertStream{rdb: rdb}
}

func (a *RedisAlertStream) Append(ctx context.Context, event datatypes.AlertEvent) (bool, error) {
	event.Status = datatypes.AlertActive
	raw, err := json.Marshal(event)
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}

	activeKey := fmt.Sprintf(redisActiveKeyFmt, event.FieldID)
	claimed, err := a.rdb.HSetNX(ctx, activeKey, event.AlertType, raw).Result()
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}
	if !claimed {
		return false, nil
	}

	err = a.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: redisAlertStream,
		MaxLen: MaxAlertHistory,
		Values: map[string]interface{}{"event": raw},
	}).Err()
	if err != nil {
		// Roll the claim back so the alert is retried next cycle.
		a.rdb.HDel(ctx, activeKey, event.AlertType)
		return false, datatypes.WriteFailure("redis", err)
	}
	return true, nil
}

func (a *RedisAlertStream) Clear(ctx context.Context, fieldID, alertType string) (bool, error) {
	activeKey := fmt.Sprintf(redisActiveKeyFmt, fieldID)
	raw, err := a.rdb.HGet(ctx, activeKey, alertType).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}

	var event datatypes.AlertEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return false, fmt.Errorf("corrupt active alert for %s: %w", fieldID, err)
	}
	event.Status = datatypes.AlertCleared
	clearedRaw, err := json.Marshal(event)
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}

	// Log the cleared transition first so the history stays complete
	// even if the HDel below is lost to a crash.
	err = a.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: redisAlertStream,
		MaxLen: MaxAlertHistory,
		Values: map[string]interface{}{"event": clearedRaw},
	}).Err()
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}

	removed, err := a.rdb.HDel(ctx, activeKey, alertType).Result()
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}
	return removed > 0, nil
}

func (a *RedisAlertStream) Active(ctx context.Context, fieldID string) ([]datatypes.AlertEvent, error) {
	activeKey := fmt.Sprintf(redisActiveKeyFmt, fieldID)
	raw, err := a.rdb.HGetAll(ctx, activeKey).Result()
	if err != nil {
		return nil, datatypes.InputUnavailable("redis", err)
	}
	out := make([]datatypes.AlertEvent, 0, len(raw))
	for _, v := range raw {
		var ev datatypes.AlertEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			return nil, fmt.Errorf("corrupt active alert for %s: %w", fieldID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (a *RedisAlertStream) Recent(ctx context.Context, limit int) ([]datatypes.AlertEvent, error) {
	if limit <= 0 || limit > MaxAlertHistory {
		limit = MaxAlertHistory
	}
	msgs, err := a.rdb.XRevRangeN(ctx, redisAlertStream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, datatypes.InputUnavailable("redis", err)
	}
	out := make([]datatypes.AlertEvent, 0, len(msgs))
	for _, m := range msgs {
		v, ok := m.Values["event"].(string)
		if !ok {
			continue
		}
		var ev datatypes.AlertEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// ===== Maintenance schedule =====

// RedisSchedule keeps field work in a sorted set scored by due time.
type RedisSchedule struct {
	rdb *redis.Client
}

func NewRedisSchedule(rdb *redis.Client) *RedisSchedule {
	return &RedisSchedule{rdb: rdb}
}

func (s *RedisSchedule) Schedule(ctx context.Context, fieldID, task string, due time.Time) error {
	member, err := json.Marshal(MaintenanceItem{FieldID: fieldID, Task: task, Due: due})
	if err != nil {
		return datatypes.WriteFailure("redis", err)
	}
	err = s.rdb.ZAdd(ctx, redisScheduleKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: member,
	}).Err()
	if err != nil {
		return datatypes.WriteFailure("redis", err)
	}
	return nil
}

func (s *RedisSchedule) DueBefore(ctx context.Context, cutoff time.Time) ([]MaintenanceItem, error) {
	members, err := s.rdb.ZRangeByScore(ctx, redisScheduleKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return nil, datatypes.InputUnavailable("redis", err)
	}
	out := make([]MaintenanceItem, 0, len(members))
	for _, m := range members {
		var it MaintenanceItem
		if err := json.Unmarshal([]byte(m), &it); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// Complete scans the sorted set for entries matching the pair and removes
// them. Members embed the due time, so removal has to match on the
// decoded fields rather than the raw member bytes.
func (s *RedisSchedule) Complete(ctx context.Context, fieldID, task string) (bool, error) {
	members, err := s.rdb.ZRange(ctx, redisScheduleKey, 0, -1).Result()
	if err != nil {
		return false, datatypes.InputUnavailable("redis", err)
	}
	var matched []any
	for _, m := range members {
		var it MaintenanceItem
		if err := json.Unmarshal([]byte(m), &it); err != nil {
			continue
		}
		if it.FieldID == fieldID && it.Task == task {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return false, nil
	}
	removed, err := s.rdb.ZRem(ctx, redisScheduleKey, matched...).Result()
	if err != nil {
		return false, datatypes.WriteFailure("redis", err)
	}
	return removed > 0, nil
}
