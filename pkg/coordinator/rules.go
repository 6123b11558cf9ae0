package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/types"
)

// ErrRuleSyntax is returned when a scheduling rule's text fails to
// validate against the currently loaded rule set.
var ErrRuleSyntax = fmt.Errorf("coordinator: rule syntax error")

// ListSchedulingRules returns every scheduling rule.
func (c *Coordinator) ListSchedulingRules(ctx context.Context) ([]*types.SchedulingRule, error) {
	return c.db.ListSchedulingRules(ctx)
}

// GetSchedulingRule returns one scheduling rule by id.
func (c *Coordinator) GetSchedulingRule(ctx context.Context, id string) (*types.SchedulingRule, error) {
	r, err := c.db.GetSchedulingRule(ctx, id)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return r, nil
}

// CreateSchedulingRule validates r's rule text (if enabled) against
// the engine's currently loaded rule set before persisting it, so a
// syntax error is rejected synchronously instead of being silently
// skipped at the next reconciliation cycle.
func (c *Coordinator) CreateSchedulingRule(ctx context.Context, r *types.SchedulingRule) error {
	if r.Enabled {
		if err := c.facts.ValidateRule(r.RuleText); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRuleSyntax, r.Name, err)
		}
	}

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := c.db.CreateSchedulingRule(ctx, r); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaSchedulingRule, Op: bus.OpCreate, Record: r})
	return nil
}

// UpdateSchedulingRule validates r's rule text (if enabled) and
// persists the change, republishing so the FactStore reloads.
func (c *Coordinator) UpdateSchedulingRule(ctx context.Context, r *types.SchedulingRule) error {
	if r.Enabled {
		if err := c.facts.ValidateRule(r.RuleText); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRuleSyntax, r.Name, err)
		}
	}

	r.UpdatedAt = time.Now().UTC()
	if err := c.db.UpdateSchedulingRule(ctx, r); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaSchedulingRule, Op: bus.OpUpdate, Record: r})
	return nil
}

// DeleteSchedulingRule removes a scheduling rule and republishes so
// the FactStore drops it from the loaded set.
func (c *Coordinator) DeleteSchedulingRule(ctx context.Context, id string) error {
	r, err := c.db.GetSchedulingRule(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if err := c.db.DeleteSchedulingRule(ctx, id); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaSchedulingRule, Op: bus.OpDelete, Record: r})
	return nil
}

// ruleBundle is the YAML-on-disk shape for a snapshot of the
// scheduling_rules table, in the same declarative-document spirit as
// Warren's `apply -f` resource files.
type ruleBundle struct {
	APIVersion string        `yaml:"apiVersion"`
	Kind       string        `yaml:"kind"`
	Rules      []bundledRule `yaml:"rules"`
}

type bundledRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	RuleText    string `yaml:"ruleText"`
	Enabled     bool   `yaml:"enabled"`
	Priority    int    `yaml:"priority"`
}

// ExportRules renders every scheduling rule as a YAML bundle.
func (c *Coordinator) ExportRules(ctx context.Context) ([]byte, error) {
	rules, err := c.db.ListSchedulingRules(ctx)
	if err != nil {
		return nil, wrapStorageErr(err)
	}

	bundle := ruleBundle{
		APIVersion: "fleet/v1",
		Kind:       "SchedulingRuleBundle",
	}
	for _, r := range rules {
		bundle.Rules = append(bundle.Rules, bundledRule{
			Name:        r.Name,
			Description: r.Description,
			RuleText:    r.RuleText,
			Enabled:     r.Enabled,
			Priority:    r.Priority,
		})
	}
	return yaml.Marshal(bundle)
}

// ImportRules parses a YAML bundle produced by ExportRules (or
// authored by hand) and creates or updates each rule by name. Every
// enabled rule is validated before anything is persisted: a single
// bad rule fails the whole import rather than leaving the table
// half-applied.
func (c *Coordinator) ImportRules(ctx context.Context, data []byte) error {
	var bundle ruleBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("coordinator: parse rule bundle: %w", err)
	}
	if bundle.Kind != "" && bundle.Kind != "SchedulingRuleBundle" {
		return fmt.Errorf("coordinator: unsupported rule bundle kind %q", bundle.Kind)
	}

	for _, br := range bundle.Rules {
		if br.Enabled {
			if err := c.facts.ValidateRule(br.RuleText); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrRuleSyntax, br.Name, err)
			}
		}
	}

	existing, err := c.db.ListSchedulingRules(ctx)
	if err != nil {
		return wrapStorageErr(err)
	}
	byName := make(map[string]*types.SchedulingRule, len(existing))
	for _, r := range existing {
		byName[r.Name] = r
	}

	for _, br := range bundle.Rules {
		if r, ok := byName[br.Name]; ok {
			r.Description = br.Description
			r.RuleText = br.RuleText
			r.Enabled = br.Enabled
			r.Priority = br.Priority
			if err := c.UpdateSchedulingRule(ctx, r); err != nil {
				return err
			}
			continue
		}
		r := &types.SchedulingRule{
			Name:        br.Name,
			Description: br.Description,
			RuleText:    br.RuleText,
			Enabled:     br.Enabled,
			Priority:    br.Priority,
		}
		if err := c.CreateSchedulingRule(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
