package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/types"
)

func newTestRule(name string, priority int, enabled bool) *types.SchedulingRule {
	now := time.Now().UTC()
	return &types.SchedulingRule{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "test rule",
		RuleText:    "workload_constraint(W, \"zone\", \"us-east\") :- workload(W, _, _).",
		Enabled:     enabled,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSchedulingRuleCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := newTestRule("zone-pin", 10, true)
	require.NoError(t, store.CreateSchedulingRule(ctx, r))

	got, err := store.GetSchedulingRule(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, r.Name, got.Name)
	require.Equal(t, r.RuleText, got.RuleText)

	got.Enabled = false
	got.Priority = 20
	require.NoError(t, store.UpdateSchedulingRule(ctx, got))

	updated, err := store.GetSchedulingRule(ctx, r.ID)
	require.NoError(t, err)
	require.False(t, updated.Enabled)
	require.Equal(t, 20, updated.Priority)

	require.NoError(t, store.DeleteSchedulingRule(ctx, r.ID))
	_, err = store.GetSchedulingRule(ctx, r.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListEnabledSchedulingRulesByPriority(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSchedulingRule(ctx, newTestRule("low", 5, true)))
	require.NoError(t, store.CreateSchedulingRule(ctx, newTestRule("high", 1, true)))
	require.NoError(t, store.CreateSchedulingRule(ctx, newTestRule("disabled", 0, false)))

	rules, err := store.ListEnabledSchedulingRulesByPriority(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "high", rules[0].Name)
	require.Equal(t, "low", rules[1].Name)
}

func TestSchedulingRuleDuplicateNameConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSchedulingRule(ctx, newTestRule("dup", 1, true)))
	err := store.CreateSchedulingRule(ctx, newTestRule("dup", 2, true))
	require.ErrorIs(t, err, ErrConflict)
}
