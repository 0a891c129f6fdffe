package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/record"
)

// AppendRecord implements record.Store. Appends are idempotent on the
// record ID: a duplicate append is a no-op, matching the at-least-once
// contract.
func (s *Store) AppendRecord(ctx context.Context, rec *record.Record) error {
	var outgoing []byte
	if len(rec.Outgoing) > 0 {
		var err error
		outgoing, err = json.Marshal(rec.Outgoing)
		if err != nil {
			return fmt.Errorf("conduct/postgres: marshal outgoing edges: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conduct_records
			(id, execution_id, action_id, node_id, node_type, properties, outgoing, status, detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID.String(),
		rec.ExecutionID.String(),
		rec.ActionID.String(),
		rec.NodeID.String(),
		nullable(rec.NodeType),
		[]byte(rec.Properties),
		outgoing,
		string(rec.Status),
		nullable(rec.Detail),
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("conduct/postgres: append record: %w", err)
	}
	return nil
}

// Records returns an execution's history in append order.
func (s *Store) Records(ctx context.Context, execID conduct.ExecutionID) ([]*record.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, execution_id, action_id, node_id, node_type, properties, outgoing, status, detail, recorded_at
		FROM conduct_records
		WHERE execution_id = $1
		ORDER BY recorded_at ASC, created_at ASC`,
		execID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("conduct/postgres: query records: %w", err)
	}
	defer rows.Close()

	var recs []*record.Record
	for rows.Next() {
		var (
			rec      record.Record
			nodeType *string
			props    []byte
			outgoing []byte
			detail   *string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.ExecutionID,
			&rec.ActionID,
			&rec.NodeID,
			&nodeType,
			&props,
			&outgoing,
			&rec.Status,
			&detail,
			&rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("conduct/postgres: scan record: %w", err)
		}
		if nodeType != nil {
			rec.NodeType = *nodeType
		}
		if detail != nil {
			rec.Detail = *detail
		}
		rec.Properties = props
		if len(outgoing) > 0 {
			if err := json.Unmarshal(outgoing, &rec.Outgoing); err != nil {
				return nil, fmt.Errorf("conduct/postgres: decode outgoing edges: %w", err)
			}
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conduct/postgres: iterate records: %w", err)
	}
	return recs, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
