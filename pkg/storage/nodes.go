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

// CreateNode inserts a new node record.
func (s *Store) CreateNode(ctx context.Context, n *types.Node) error {
	caps, err := json.Marshal(n.Capabilities)
	if err != nil {
		return fmt.Errorf("storage: marshal capabilities: %w", err)
	}

	query := `
		INSERT INTO nodes (id, hostname, status, cpu_total, memory_total_mb, cpu_used, memory_used_mb,
			hypervisor, capabilities, last_heartbeat_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		n.ID, n.Hostname, string(n.Status), n.CPUTotal, n.MemoryTotalMB, n.CPUUsed, n.MemoryUsedMB,
		nullString(n.Hypervisor), string(caps), n.LastHeartbeatAt, n.CreatedAt, n.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("storage: hostname %s: %w", n.Hostname, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("storage: create node: %w", err)
	}
	return nil
}

// GetNode retrieves a node by id.
func (s *Store) GetNode(ctx context.Context, id string) (*types.Node, error) {
	query := `
		SELECT id, hostname, status, cpu_total, memory_total_mb, cpu_used, memory_used_mb,
			hypervisor, capabilities, last_heartbeat_at, created_at, updated_at
		FROM nodes WHERE id = ?
	`
	return scanNode(s.db.QueryRowContext(ctx, query, id))
}

// GetNodeByHostname retrieves a node by its unique hostname, used by
// the heartbeat path to decide whether to auto-register.
func (s *Store) GetNodeByHostname(ctx context.Context, hostname string) (*types.Node, error) {
	query := `
		SELECT id, hostname, status, cpu_total, memory_total_mb, cpu_used, memory_used_mb,
			hypervisor, capabilities, last_heartbeat_at, created_at, updated_at
		FROM nodes WHERE hostname = ?
	`
	return scanNode(s.db.QueryRowContext(ctx, query, hostname))
}

// ListNodes returns every node, ordered by hostname.
func (s *Store) ListNodes(ctx context.Context) ([]*types.Node, error) {
	query := `
		SELECT id, hostname, status, cpu_total, memory_total_mb, cpu_used, memory_used_mb,
			hypervisor, capabilities, last_heartbeat_at, created_at, updated_at
		FROM nodes ORDER BY hostname ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list nodes: %w", err)
	}
	defer rows.Close()

	var out []*types.Node
	for rows.Next() {
		n, err := scanNodeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateNode replaces n's mutable fields.
func (s *Store) UpdateNode(ctx context.Context, n *types.Node) error {
	caps, err := json.Marshal(n.Capabilities)
	if err != nil {
		return fmt.Errorf("storage: marshal capabilities: %w", err)
	}
	n.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE nodes SET hostname = ?, status = ?, cpu_total = ?, memory_total_mb = ?,
			cpu_used = ?, memory_used_mb = ?, hypervisor = ?, capabilities = ?,
			last_heartbeat_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		n.Hostname, string(n.Status), n.CPUTotal, n.MemoryTotalMB, n.CPUUsed, n.MemoryUsedMB,
		nullString(n.Hypervisor), string(caps), n.LastHeartbeatAt, n.UpdatedAt, n.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("storage: hostname %s: %w", n.Hostname, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("storage: update node: %w", err)
	}
	return checkRowsAffected(res, n.ID)
}

// DeleteNode removes a node by id. Placed workloads are unaffected by
// the row's removal here; the FK is ON DELETE SET NULL so their
// node_id clears automatically.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete node: %w", err)
	}
	return checkRowsAffected(res, id)
}

func scanNode(row *sql.Row) (*types.Node, error) {
	n := &types.Node{}
	var status string
	var hypervisor sql.NullString
	var caps string
	err := row.Scan(&n.ID, &n.Hostname, &status, &n.CPUTotal, &n.MemoryTotalMB, &n.CPUUsed, &n.MemoryUsedMB,
		&hypervisor, &caps, &n.LastHeartbeatAt, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: scan node: %w", err)
	}
	n.Status = types.NodeStatus(status)
	n.Hypervisor = hypervisor.String
	if err := json.Unmarshal([]byte(caps), &n.Capabilities); err != nil {
		return nil, fmt.Errorf("storage: unmarshal capabilities: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNodeRows(rows rowScanner) (*types.Node, error) {
	n := &types.Node{}
	var status string
	var hypervisor sql.NullString
	var caps string
	err := rows.Scan(&n.ID, &n.Hostname, &status, &n.CPUTotal, &n.MemoryTotalMB, &n.CPUUsed, &n.MemoryUsedMB,
		&hypervisor, &caps, &n.LastHeartbeatAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: scan node: %w", err)
	}
	n.Status = types.NodeStatus(status)
	n.Hypervisor = hypervisor.String
	if err := json.Unmarshal([]byte(caps), &n.Capabilities); err != nil {
		return nil, fmt.Errorf("storage: unmarshal capabilities: %w", err)
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("storage: %s: %w", id, ErrNotFound)
	}
	return nil
}
