package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/record"
)

// AppendRecord implements record.Store. The record is JSON-encoded and
// RPUSHed onto the execution's history list; the execution ID is added
// to the enumeration set in the same transaction.
func (s *Store) AppendRecord(ctx context.Context, rec *record.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("conduct/redis: marshal record: %w", err)
	}

	execID := rec.ExecutionID.String()
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, recordsKey(execID), data)
	pipe.SAdd(ctx, executionsKey, execID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conduct/redis: append record: %w", err)
	}
	return nil
}

// Records returns an execution's history in append order.
func (s *Store) Records(ctx context.Context, execID conduct.ExecutionID) ([]*record.Record, error) {
	raw, err := s.client.LRange(ctx, recordsKey(execID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conduct/redis: read records: %w", err)
	}

	recs := make([]*record.Record, 0, len(raw))
	for _, item := range raw {
		var rec record.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("conduct/redis: decode record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

// Executions returns all execution identifiers with at least one record.
func (s *Store) Executions(ctx context.Context) ([]conduct.ExecutionID, error) {
	raw, err := s.client.SMembers(ctx, executionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conduct/redis: read executions: %w", err)
	}

	ids := make([]conduct.ExecutionID, len(raw))
	for i, item := range raw {
		ids[i] = conduct.ExecutionID(item)
	}
	return ids, nil
}
