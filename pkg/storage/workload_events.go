package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cuemby/fleet/pkg/types"
)

// CreateWorkloadEvent appends a new event row. Events are append-only:
// there is no Update or Delete.
func (s *Store) CreateWorkloadEvent(ctx context.Context, e *types.WorkloadEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("storage: marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO workload_events (id, workload_id, event_type, metadata, inserted_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, e.ID, e.WorkloadID, e.EventType, string(metadata), e.InsertedAt)
	if err != nil {
		return fmt.Errorf("storage: create workload event: %w", err)
	}
	return nil
}

// ListWorkloadEventsByWorkload returns every event recorded for a
// workload, oldest first.
func (s *Store) ListWorkloadEventsByWorkload(ctx context.Context, workloadID string) ([]*types.WorkloadEvent, error) {
	query := `
		SELECT id, workload_id, event_type, metadata, inserted_at
		FROM workload_events WHERE workload_id = ? ORDER BY inserted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, workloadID)
	if err != nil {
		return nil, fmt.Errorf("storage: list workload events: %w", err)
	}
	defer rows.Close()

	var out []*types.WorkloadEvent
	for rows.Next() {
		e, err := scanWorkloadEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanWorkloadEvent(rows *sql.Rows) (*types.WorkloadEvent, error) {
	e := &types.WorkloadEvent{}
	var metadata string
	if err := rows.Scan(&e.ID, &e.WorkloadID, &e.EventType, &metadata, &e.InsertedAt); err != nil {
		return nil, fmt.Errorf("storage: scan workload event: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("storage: unmarshal event metadata: %w", err)
	}
	return e, nil
}
