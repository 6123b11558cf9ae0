package reactor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/coordinator"
	"github.com/cuemby/fleet/pkg/log"
	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/placement"
)

// category names the five derived-fact predicates the Reactor reacts
// to, used as the first half of a debounce key and as the "rule"
// metric label.
type category string

const (
	categoryNodeStale        category = "node_stale"
	categoryShouldFail       category = "should_fail"
	categoryWorkloadOrphaned category = "workload_orphaned"
	categoryCanRestart       category = "can_restart"
	categoryNodeOverloaded   category = "node_overloaded"
)

type debounceKey struct {
	cat category
	id  string
}

// Reactor owns its debounce table, per spec's ownership map; it is
// the single goroutine reading and writing it, so no lock is needed.
type Reactor struct {
	coord *coordinator.Coordinator
	bus   *bus.Bus
	cfg   config.Config
	log   zerolog.Logger

	sub    *bus.DerivedFactsSubscription
	doneCh chan struct{}

	lastActed map[debounceKey]time.Time
}

// New constructs a Reactor. Start must be called once before it
// reacts to anything.
func New(coord *coordinator.Coordinator, b *bus.Bus, cfg config.Config) *Reactor {
	return &Reactor{
		coord:     coord,
		bus:       b,
		cfg:       cfg,
		log:       log.WithComponent("reactor"),
		lastActed: make(map[debounceKey]time.Time),
	}
}

// Start subscribes to derived_facts and begins reacting to snapshots
// on a background goroutine.
func (r *Reactor) Start() {
	r.sub = r.bus.SubscribeDerivedFacts()
	r.doneCh = make(chan struct{})
	go r.run()
}

// Stop closes the subscription and blocks until the reaction loop has
// drained and exited.
func (r *Reactor) Stop() {
	r.sub.Close()
	<-r.doneCh
}

func (r *Reactor) run() {
	defer close(r.doneCh)
	r.log.Info().Msg("reactor loop started")
	for {
		snap, ok := r.sub.Recv()
		if !ok {
			r.log.Info().Msg("reactor loop stopped")
			return
		}
		r.handleSnapshot(context.Background(), snap)
	}
}

func (r *Reactor) handleSnapshot(ctx context.Context, snap bus.DerivedFactsSnapshot) {
	for _, id := range snap.StaleNodes {
		r.act(ctx, categoryNodeStale, id, func() error { return r.coord.MarkNodeStale(ctx, id) })
	}
	for _, id := range snap.ShouldFail {
		r.act(ctx, categoryShouldFail, id, func() error { return r.coord.FailWorkload(ctx, id, "Node unhealthy") })
	}
	for _, id := range snap.Orphaned {
		r.act(ctx, categoryWorkloadOrphaned, id, func() error { return r.coord.OrphanWorkload(ctx, id) })
	}
	for _, id := range snap.CanRestart {
		r.act(ctx, categoryCanRestart, id, func() error {
			err := r.coord.RestartWorkload(ctx, id)
			if errors.Is(err, placement.ErrNoCandidates) {
				return nil
			}
			return err
		})
	}
	for _, id := range snap.Overloaded {
		r.act(ctx, categoryNodeOverloaded, id, func() error {
			r.log.Warn().Str("node_id", id).Msg("node overloaded")
			return nil
		})
	}
}

// act runs fn for (cat, id) unless it was already run within the
// configured debounce window, and records the outcome as a metric.
func (r *Reactor) act(ctx context.Context, cat category, id string, fn func() error) {
	key := debounceKey{cat: cat, id: id}
	now := time.Now()

	if last, ok := r.lastActed[key]; ok && now.Sub(last) < r.cfg.ReactorDebounce() {
		metrics.ReactorDebouncedTotal.WithLabelValues(string(cat)).Inc()
		return
	}
	r.lastActed[key] = now

	if err := fn(); err != nil {
		r.log.Error().Err(err).Str("category", string(cat)).Str("id", id).Msg("reactor action failed")
		return
	}
	metrics.ReactorActionsTotal.WithLabelValues(string(cat)).Inc()
}
