package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/fleet/pkg/types"
)

// CreateSchedulingRule inserts a new user-supplied scheduling rule.
func (s *Store) CreateSchedulingRule(ctx context.Context, r *types.SchedulingRule) error {
	query := `
		INSERT INTO scheduling_rules (id, name, description, rule_text, enabled, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.Description, r.RuleText, r.Enabled, r.Priority, r.CreatedAt, r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("storage: rule name %s: %w", r.Name, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("storage: create scheduling rule: %w", err)
	}
	return nil
}

// GetSchedulingRule retrieves a scheduling rule by id.
func (s *Store) GetSchedulingRule(ctx context.Context, id string) (*types.SchedulingRule, error) {
	query := `
		SELECT id, name, description, rule_text, enabled, priority, created_at, updated_at
		FROM scheduling_rules WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	r := &types.SchedulingRule{}
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.RuleText, &r.Enabled, &r.Priority, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: scan scheduling rule: %w", err)
	}
	return r, nil
}

// ListSchedulingRules returns every scheduling rule, ordered by name.
func (s *Store) ListSchedulingRules(ctx context.Context) ([]*types.SchedulingRule, error) {
	query := `
		SELECT id, name, description, rule_text, enabled, priority, created_at, updated_at
		FROM scheduling_rules ORDER BY name ASC
	`
	return queryRules(ctx, s.db, query)
}

// ListEnabledSchedulingRulesByPriority returns enabled rules in
// ascending priority order, the order the factstore loads them in
// after the shipped rule base.
func (s *Store) ListEnabledSchedulingRulesByPriority(ctx context.Context) ([]*types.SchedulingRule, error) {
	query := `
		SELECT id, name, description, rule_text, enabled, priority, created_at, updated_at
		FROM scheduling_rules WHERE enabled = 1 ORDER BY priority ASC, name ASC
	`
	return queryRules(ctx, s.db, query)
}

func queryRules(ctx context.Context, db *sql.DB, query string) ([]*types.SchedulingRule, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list scheduling rules: %w", err)
	}
	defer rows.Close()

	var out []*types.SchedulingRule
	for rows.Next() {
		r := &types.SchedulingRule{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.RuleText, &r.Enabled, &r.Priority, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan scheduling rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateSchedulingRule replaces r's mutable fields.
func (s *Store) UpdateSchedulingRule(ctx context.Context, r *types.SchedulingRule) error {
	r.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE scheduling_rules SET name = ?, description = ?, rule_text = ?, enabled = ?, priority = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, r.Name, r.Description, r.RuleText, r.Enabled, r.Priority, r.UpdatedAt, r.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("storage: rule name %s: %w", r.Name, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("storage: update scheduling rule: %w", err)
	}
	return checkRowsAffected(res, r.ID)
}

// DeleteSchedulingRule removes a scheduling rule by id.
func (s *Store) DeleteSchedulingRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduling_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete scheduling rule: %w", err)
	}
	return checkRowsAffected(res, id)
}
