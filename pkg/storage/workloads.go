package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/fleet/pkg/types"
)

// CreateWorkload inserts a new workload record.
func (s *Store) CreateWorkload(ctx context.Context, w *types.Workload) error {
	args, err := json.Marshal(w.Args)
	if err != nil {
		return fmt.Errorf("storage: marshal args: %w", err)
	}
	env, err := json.Marshal(w.Env)
	if err != nil {
		return fmt.Errorf("storage: marshal env: %w", err)
	}
	constraints, err := json.Marshal(w.Constraints)
	if err != nil {
		return fmt.Errorf("storage: marshal constraints: %w", err)
	}

	query := `
		INSERT INTO workloads (id, type, status, command, args, env, cpu_required, memory_required_mb,
			constraints, node_id, error, started_at, stopped_at, ip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		w.ID, string(w.Type), string(w.Status), w.Command, string(args), string(env),
		w.CPURequired, w.MemoryRequiredMB, string(constraints), w.NodeID, nullString(w.Error),
		w.StartedAt, w.StoppedAt, nullString(w.IP), w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create workload: %w", err)
	}
	return nil
}

// GetWorkload retrieves a workload by id.
func (s *Store) GetWorkload(ctx context.Context, id string) (*types.Workload, error) {
	query := `
		SELECT id, type, status, command, args, env, cpu_required, memory_required_mb,
			constraints, node_id, error, started_at, stopped_at, ip, created_at, updated_at
		FROM workloads WHERE id = ?
	`
	return scanWorkload(s.db.QueryRowContext(ctx, query, id))
}

// ListWorkloads returns every workload, ordered by creation time.
func (s *Store) ListWorkloads(ctx context.Context) ([]*types.Workload, error) {
	query := `
		SELECT id, type, status, command, args, env, cpu_required, memory_required_mb,
			constraints, node_id, error, started_at, stopped_at, ip, created_at, updated_at
		FROM workloads ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list workloads: %w", err)
	}
	defer rows.Close()

	var out []*types.Workload
	for rows.Next() {
		w, err := scanWorkloadRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdateWorkload replaces w's mutable fields.
func (s *Store) UpdateWorkload(ctx context.Context, w *types.Workload) error {
	args, err := json.Marshal(w.Args)
	if err != nil {
		return fmt.Errorf("storage: marshal args: %w", err)
	}
	env, err := json.Marshal(w.Env)
	if err != nil {
		return fmt.Errorf("storage: marshal env: %w", err)
	}
	constraints, err := json.Marshal(w.Constraints)
	if err != nil {
		return fmt.Errorf("storage: marshal constraints: %w", err)
	}
	w.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workloads SET type = ?, status = ?, command = ?, args = ?, env = ?,
			cpu_required = ?, memory_required_mb = ?, constraints = ?, node_id = ?,
			error = ?, started_at = ?, stopped_at = ?, ip = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(w.Type), string(w.Status), w.Command, string(args), string(env),
		w.CPURequired, w.MemoryRequiredMB, string(constraints), w.NodeID,
		nullString(w.Error), w.StartedAt, w.StoppedAt, nullString(w.IP), w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: update workload: %w", err)
	}
	return checkRowsAffected(res, w.ID)
}

func scanWorkload(row *sql.Row) (*types.Workload, error) {
	w := &types.Workload{}
	var wtype, status string
	var argsJSON, envJSON, constraintsJSON string
	var nodeID, errStr, ip sql.NullString
	err := row.Scan(&w.ID, &wtype, &status, &w.Command, &argsJSON, &envJSON, &w.CPURequired,
		&w.MemoryRequiredMB, &constraintsJSON, &nodeID, &errStr, &w.StartedAt, &w.StoppedAt,
		&ip, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: scan workload: %w", err)
	}
	return finishWorkload(w, wtype, status, argsJSON, envJSON, constraintsJSON, nodeID, errStr, ip)
}

func scanWorkloadRows(rows rowScanner) (*types.Workload, error) {
	w := &types.Workload{}
	var wtype, status string
	var argsJSON, envJSON, constraintsJSON string
	var nodeID, errStr, ip sql.NullString
	err := rows.Scan(&w.ID, &wtype, &status, &w.Command, &argsJSON, &envJSON, &w.CPURequired,
		&w.MemoryRequiredMB, &constraintsJSON, &nodeID, &errStr, &w.StartedAt, &w.StoppedAt,
		&ip, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: scan workload: %w", err)
	}
	return finishWorkload(w, wtype, status, argsJSON, envJSON, constraintsJSON, nodeID, errStr, ip)
}

func finishWorkload(w *types.Workload, wtype, status, argsJSON, envJSON, constraintsJSON string, nodeID, errStr, ip sql.NullString) (*types.Workload, error) {
	w.Type = types.WorkloadType(wtype)
	w.Status = types.WorkloadStatus(status)
	if err := json.Unmarshal([]byte(argsJSON), &w.Args); err != nil {
		return nil, fmt.Errorf("storage: unmarshal args: %w", err)
	}
	if err := json.Unmarshal([]byte(envJSON), &w.Env); err != nil {
		return nil, fmt.Errorf("storage: unmarshal env: %w", err)
	}
	if err := json.Unmarshal([]byte(constraintsJSON), &w.Constraints); err != nil {
		return nil, fmt.Errorf("storage: unmarshal constraints: %w", err)
	}
	if nodeID.Valid {
		id := nodeID.String
		w.NodeID = &id
	}
	w.Error = errStr.String
	w.IP = ip.String
	return w, nil
}
