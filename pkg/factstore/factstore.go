package factstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/engine"
	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/log"
	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/rules"
	"github.com/cuemby/fleet/pkg/storage"
	"github.com/cuemby/fleet/pkg/types"
)

// Store is the FactStore component: the sole owner of the in-memory
// rules engine, kept converged with the durable store by a single
// background actor goroutine. Every engine write (Assert/Retract/
// LoadRules) happens on that goroutine; Query is safe from any
// goroutine.
type Store struct {
	eng   *engine.Engine
	db    *storage.Store
	bus   *bus.Bus
	cfg   config.Config
	log   zerolog.Logger

	recordSub *bus.RecordChangeSubscription
	recvCh    chan bus.RecordChange
	syncCh    chan syncRequest
	stopCh    chan struct{}
	doneCh    chan struct{}

	lastRulesHash string

	sourcesMu     sync.RWMutex
	loadedSources []string
}

// ValidateRule checks text against the rule set currently loaded by
// the engine, without mutating anything. Used by the Coordinator's
// scheduling-rule CRUD to reject a bad rule at create/update time
// instead of waiting for the next reconciliation cycle to skip it.
func (s *Store) ValidateRule(text string) error {
	s.sourcesMu.RLock()
	loaded := append([]string{}, s.loadedSources...)
	s.sourcesMu.RUnlock()
	return s.eng.ValidateRuleText(text, loaded...)
}

func (s *Store) setLoadedSources(sources []string) {
	s.sourcesMu.Lock()
	s.loadedSources = append([]string{}, sources...)
	s.sourcesMu.Unlock()
}

// New constructs a Store. Start must be called once before it serves
// queries.
func New(db *storage.Store, b *bus.Bus, cfg config.Config) *Store {
	return &Store{
		eng:    engine.New(),
		db:     db,
		bus:    b,
		cfg:    cfg,
		log:    log.WithComponent("factstore"),
		syncCh: make(chan syncRequest),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// syncRequest runs fn on the actor goroutine and reports its error
// back over done, the same request/response shape every other actor
// in this codebase uses to let outside callers touch actor-owned
// state safely.
type syncRequest struct {
	fn   func() error
	done chan error
}

// runSync hands fn to the actor loop and blocks for its result,
// serialized the same as every tick/reconcile/record-change the loop
// already processes. Used where a caller needs the engine's state to
// reflect a write before it reads a query result, instead of racing
// the asynchronous record_changes bus.
func (s *Store) runSync(fn func() error) error {
	req := syncRequest{fn: fn, done: make(chan error, 1)}
	select {
	case s.syncCh <- req:
	case <-s.stopCh:
		return fmt.Errorf("factstore: stopped")
	}
	select {
	case err := <-req.done:
		return err
	case <-s.stopCh:
		return fmt.Errorf("factstore: stopped")
	}
}

// SyncWorkload projects w and asserts/retracts the diff against the
// engine's current facts for it, synchronously on the actor goroutine,
// then re-evaluates before returning. DeployWorkload (spec §4.9 step
// 3: "force a FactStore evaluation, query placement candidates") calls
// this right after creating a workload so placement_candidate/4
// reflects it immediately, rather than waiting for the async
// record_changes bus to deliver the create event on its own schedule.
func (s *Store) SyncWorkload(w types.Workload) error {
	return s.runSync(func() error {
		predicates := []string{facts.Workload, facts.WorkloadPlacement, facts.WorkloadResources, facts.WorkloadConstraint}
		return s.syncEntity(w.ID, predicates, facts.ProjectWorkload(w))
	})
}

// Start loads the shipped rules, folds in the currently enabled user
// rules, bulk-loads every durable record into the fact base, and
// starts the background tick/reconcile/record-change actor loop.
//
// A shipped rule that fails to parse is a build-time defect, not a
// runtime condition: Start logs it fatally and terminates the
// process, per the spec's fatal-at-startup failure mode.
func (s *Store) Start(ctx context.Context) {
	shipped := rules.Shipped()
	var shippedTexts []string
	for _, src := range shipped {
		shippedTexts = append(shippedTexts, src.Text)
	}
	if err := s.eng.LoadRules(shippedTexts); err != nil {
		log.Logger.Fatal().Err(err).Msg("factstore: shipped rule set failed to parse")
	}
	s.setLoadedSources(shippedTexts)

	if err := s.reloadRules(ctx); err != nil {
		s.log.Error().Err(err).Msg("initial scheduling rule load failed, continuing with shipped rules only")
	}

	if err := s.bulkLoad(ctx); err != nil {
		s.log.Error().Err(err).Msg("initial bulk load failed, starting from an empty fact base; next reconciliation retries")
	}

	if err := s.assertNow(); err != nil {
		s.log.Error().Err(err).Msg("failed to assert initial now/1")
	}

	s.recordSub = s.bus.SubscribeRecordChanges()
	s.recvCh = make(chan bus.RecordChange)
	go s.pumpRecordChanges()

	s.publishSnapshot()

	go s.run()
}

// Stop halts the actor loop and blocks until it has exited.
func (s *Store) Stop() {
	close(s.stopCh)
	<-s.doneCh
	if s.recordSub != nil {
		s.recordSub.Close()
	}
}

// pumpRecordChanges forwards the blocking subscription Recv loop onto
// a channel so run's select can multiplex it alongside the timers.
func (s *Store) pumpRecordChanges() {
	for {
		rc, ok := s.recordSub.Recv()
		if !ok {
			return
		}
		select {
		case s.recvCh <- rc:
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) run() {
	tickTicker := time.NewTicker(s.cfg.TimeTickInterval())
	reconcileTicker := time.NewTicker(s.cfg.ReconcileInterval())
	defer tickTicker.Stop()
	defer reconcileTicker.Stop()
	defer close(s.doneCh)

	s.log.Info().Msg("factstore actor loop started")

	for {
		select {
		case <-s.stopCh:
			s.log.Info().Msg("factstore actor loop stopped")
			return
		case <-tickTicker.C:
			s.tick()
		case <-reconcileTicker.C:
			s.reconcile(context.Background())
		case rc := <-s.recvCh:
			s.handleRecordChange(rc)
		case req := <-s.syncCh:
			err := req.fn()
			if err == nil {
				s.publishSnapshot()
			}
			req.done <- err
		}
	}
}

// tick retracts and reasserts now/1 with the current wall clock,
// re-evaluates, and publishes a fresh derived_facts snapshot.
func (s *Store) tick() {
	timer := metrics.NewTimer()
	if err := s.assertNow(); err != nil {
		s.log.Error().Err(err).Msg("time tick failed")
		return
	}
	timer.ObserveDuration(metrics.FactStoreEvalDuration)
	metrics.FactStoreTicksTotal.Inc()
	s.publishSnapshot()
}

func (s *Store) assertNow() error {
	existing, err := s.eng.Query(facts.NewPattern(facts.Now, facts.Any()))
	if err != nil {
		return fmt.Errorf("factstore: query now/1: %w", err)
	}
	for _, f := range existing {
		if err := s.eng.Retract(f); err != nil {
			return fmt.Errorf("factstore: retract now/1: %w", err)
		}
	}
	return s.eng.Assert(facts.ProjectNow(time.Now().Unix()))
}

// handleRecordChange recomputes the base facts for one record and
// applies the diff against whatever facts the engine currently holds
// for that record's id.
func (s *Store) handleRecordChange(rc bus.RecordChange) {
	var err error
	switch rc.Schema {
	case bus.SchemaNode:
		err = s.syncNode(rc)
	case bus.SchemaWorkload:
		err = s.syncWorkload(rc)
	case bus.SchemaWorkloadEvent:
		err = s.syncWorkloadEvent(rc)
	case bus.SchemaSchedulingRule:
		err = s.reloadRules(context.Background())
	default:
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("schema", string(rc.Schema)).Str("op", string(rc.Op)).Msg("record change sync failed")
		return
	}
	s.publishSnapshot()
}

func (s *Store) syncNode(rc bus.RecordChange) error {
	n, ok := rc.Record.(*types.Node)
	if !ok || n == nil {
		return fmt.Errorf("factstore: node record change carried unexpected payload %T", rc.Record)
	}
	predicates := []string{facts.Node, facts.NodeResources, facts.NodeResourcesUsed, facts.NodeResourcesFree, facts.NodeHeartbeat, facts.NodeCapability}
	var desired []facts.Fact
	if rc.Op != bus.OpDelete {
		desired = facts.ProjectNode(*n)
	}
	return s.syncEntity(n.ID, predicates, desired)
}

func (s *Store) syncWorkload(rc bus.RecordChange) error {
	w, ok := rc.Record.(*types.Workload)
	if !ok || w == nil {
		return fmt.Errorf("factstore: workload record change carried unexpected payload %T", rc.Record)
	}
	predicates := []string{facts.Workload, facts.WorkloadPlacement, facts.WorkloadResources, facts.WorkloadConstraint}
	var desired []facts.Fact
	if rc.Op != bus.OpDelete {
		desired = facts.ProjectWorkload(*w)
	}
	return s.syncEntity(w.ID, predicates, desired)
}

// syncWorkloadEvent asserts the single fact for a newly appended
// event. Events are append-only and excluded from facts.Projected, so
// this is a plain assert, never a diff.
func (s *Store) syncWorkloadEvent(rc bus.RecordChange) error {
	e, ok := rc.Record.(*types.WorkloadEvent)
	if !ok || e == nil {
		return fmt.Errorf("factstore: workload_event record change carried unexpected payload %T", rc.Record)
	}
	return s.eng.AssertAll(facts.ProjectWorkloadEvent(*e))
}

// syncEntity diffs desired against whatever facts currently exist in
// the engine for id across predicates, and applies the diff.
func (s *Store) syncEntity(id string, predicates []string, desired []facts.Fact) error {
	var current []facts.Fact
	for _, pred := range predicates {
		arity := facts.Arities[pred]
		args := make([]facts.Arg, arity)
		args[0] = facts.Bound(facts.String(id))
		for i := 1; i < arity; i++ {
			args[i] = facts.Any()
		}
		rows, err := s.eng.Query(facts.NewPattern(pred, args...))
		if err != nil {
			return fmt.Errorf("factstore: query %s for %s: %w", pred, id, err)
		}
		current = append(current, rows...)
	}

	toAssert, toRetract := facts.Diff(current, desired)
	if len(toAssert) > 0 {
		if err := s.eng.AssertAll(toAssert); err != nil {
			return fmt.Errorf("factstore: assert facts for %s: %w", id, err)
		}
	}
	for _, f := range toRetract {
		if err := s.eng.Retract(f); err != nil {
			return fmt.Errorf("factstore: retract fact for %s: %w", id, err)
		}
	}
	return nil
}

// publishSnapshot queries the five reactor-relevant derived
// predicates and publishes the result as a level-triggered snapshot.
func (s *Store) publishSnapshot() {
	snap := bus.DerivedFactsSnapshot{
		StaleNodes: s.ids(facts.NodeStale),
		ShouldFail: s.ids(facts.ShouldFail),
		Orphaned:   s.ids(facts.WorkloadOrphaned),
		CanRestart: s.ids(facts.CanRestart),
		Overloaded: s.ids(facts.NodeOverloaded),
	}
	for _, pred := range []string{facts.NodeStale, facts.ShouldFail, facts.WorkloadOrphaned, facts.CanRestart, facts.NodeOverloaded} {
		rows, err := s.eng.Query(facts.NewPattern(pred, facts.Any()))
		if err == nil {
			metrics.DerivedFactsTotal.WithLabelValues(pred).Set(float64(len(rows)))
		}
	}
	s.bus.PublishDerivedFacts(snap)
}

func (s *Store) ids(predicate string) []string {
	rows, err := s.eng.Query(facts.NewPattern(predicate, facts.Any()))
	if err != nil {
		s.log.Error().Err(err).Str("predicate", predicate).Msg("snapshot query failed")
		return nil
	}
	out := make([]string, 0, len(rows))
	for _, f := range rows {
		if len(f.Args) != 1 {
			continue
		}
		out = append(out, f.Args[0].Str())
	}
	return out
}
