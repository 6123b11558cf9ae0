package factstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/rules"
)

// bulkLoad reads every node and workload from the durable store,
// projects them, and asserts the full fact set, plus the config-
// derived singleton thresholds.
func (s *Store) bulkLoad(ctx context.Context) error {
	var desired []facts.Fact

	nodes, err := s.db.ListNodes(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		desired = append(desired, facts.ProjectNode(*n)...)
	}

	workloads, err := s.db.ListWorkloads(ctx)
	if err != nil {
		return err
	}
	for _, w := range workloads {
		desired = append(desired, facts.ProjectWorkload(*w)...)
	}

	desired = append(desired,
		facts.ProjectNodeStaleThreshold(s.cfg.NodeStaleThresholdS),
		facts.ProjectOverloadThresholdPct(s.cfg.OverloadThresholdPct),
	)

	return s.eng.AssertAll(desired)
}

// reconcile re-derives the full projected fact set from the durable
// store and diffs it against whatever the engine currently holds for
// the projected predicates, then applies the diff. It also re-checks
// the enabled scheduling rules and reloads the engine's rule set if
// they changed.
//
// A durable-store read failure here is logged and the cycle is
// skipped: the engine keeps serving queries against the last good
// state, and the next tick retries.
func (s *Store) reconcile(ctx context.Context) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.FactStoreEvalDuration)
		metrics.FactStoreReconcileCyclesTotal.Inc()
	}()

	if err := s.reconcileFacts(ctx); err != nil {
		s.log.Error().Err(err).Msg("reconciliation failed, keeping last good fact state")
		return
	}
	if err := s.reloadRules(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduling rule reconciliation failed")
	}
	s.publishSnapshot()
}

func (s *Store) reconcileFacts(ctx context.Context) error {
	var desired []facts.Fact

	nodes, err := s.db.ListNodes(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		desired = append(desired, facts.ProjectNode(*n)...)
	}

	workloads, err := s.db.ListWorkloads(ctx)
	if err != nil {
		return err
	}
	for _, w := range workloads {
		desired = append(desired, facts.ProjectWorkload(*w)...)
	}
	desired = append(desired,
		facts.ProjectNodeStaleThreshold(s.cfg.NodeStaleThresholdS),
		facts.ProjectOverloadThresholdPct(s.cfg.OverloadThresholdPct),
	)

	var current []facts.Fact
	for _, pred := range append(append([]string{}, facts.Projected...), facts.NodeStaleThreshold, facts.OverloadThresholdPct) {
		arity := facts.Arities[pred]
		args := make([]facts.Arg, arity)
		for i := range args {
			args[i] = facts.Any()
		}
		rows, err := s.eng.Query(facts.NewPattern(pred, args...))
		if err != nil {
			return err
		}
		current = append(current, rows...)
	}

	toAssert, toRetract := facts.Diff(current, desired)
	if len(toAssert) > 0 {
		if err := s.eng.AssertAll(toAssert); err != nil {
			return err
		}
	}
	for _, f := range toRetract {
		if err := s.eng.Retract(f); err != nil {
			return err
		}
	}
	return nil
}

// reloadRules re-validates every enabled scheduling rule against the
// shipped rule set (and against the rules already accepted ahead of
// it, in priority order), skipping any that fail to parse, and
// reloads the engine only if the accepted set actually changed.
//
// An unparseable user rule is logged and skipped, never fatal: the
// rest of the enabled rules still load.
func (s *Store) reloadRules(ctx context.Context) error {
	shipped := rules.Shipped()
	var shippedTexts []string
	for _, src := range shipped {
		shippedTexts = append(shippedTexts, src.Text)
	}

	enabled, err := s.db.ListEnabledSchedulingRulesByPriority(ctx)
	if err != nil {
		return err
	}

	accepted := make([]string, 0, len(enabled))
	for _, r := range enabled {
		priorSources := append(append([]string{}, shippedTexts...), accepted...)
		if err := s.eng.ValidateRuleText(r.RuleText, priorSources...); err != nil {
			s.log.Warn().Err(err).Str("rule", r.Name).Msg("skipping unparseable scheduling rule")
			continue
		}
		accepted = append(accepted, r.RuleText)
	}

	all := append(append([]string{}, shippedTexts...), accepted...)
	hash := rulesHash(all)
	if hash == s.lastRulesHash {
		return nil
	}
	if err := s.eng.LoadRules(all); err != nil {
		return err
	}
	s.lastRulesHash = hash
	s.setLoadedSources(all)
	return nil
}

func rulesHash(sources []string) string {
	h := sha256.New()
	for _, src := range sources {
		h.Write([]byte(src))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
