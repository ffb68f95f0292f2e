package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/lexsim/pkg/schedule"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

// ApplyRetroactive adds st to the live statute set and re-simulates
// [from, end]. The run is destructive: the population is reset to its
// built state and every scheduled event is replayed against it, so any
// metrics previously computed for the range are superseded. The start date
// is restored afterwards.
func (e *Engine) ApplyRetroactive(ctx context.Context, st *statute.Temporal, from time.Time) (*TemporalMetrics, error) {
	if from.After(e.end) {
		e.logger.WarnContext(ctx, "retroactive date after end date",
			"statute", st.ID(),
			"from", from.Format(time.DateOnly),
			"end", e.end.Format(time.DateOnly),
		)
	}

	e.statutes = append(e.statutes, st.Clone())

	original := e.start
	e.start = from
	defer func() { e.start = original }()

	e.population.ReplaceWith(e.baseline)
	before := e.queue.Len()
	e.queue.Rewind()
	e.obs.RecordPendingEvents(ctx, e.queue.Len()-before)

	e.logger.InfoContext(ctx, "applying statute retroactively",
		"statute", st.ID(),
		"from", from.Format(time.DateOnly),
	)
	return e.run(ctx, "retroactive", nil)
}

// WhatIf compares the current statute set against the same set plus alt,
// both simulated from from to end on independent deep copies of the
// population and pending events. The engine itself is not modified.
func (e *Engine) WhatIf(ctx context.Context, alt *statute.Temporal, from time.Time) (baseline, alternative *TemporalMetrics, err error) {
	if from.Before(e.start) || from.After(e.end) {
		e.logger.WarnContext(ctx, "what-if date outside simulated range",
			"from", from.Format(time.DateOnly),
			"start", e.start.Format(time.DateOnly),
			"end", e.end.Format(time.DateOnly),
		)
	}

	baseEngine := e.fork(from, nil, "baseline")
	altEngine := e.fork(from, alt, "alternative")

	var base, variant *TemporalMetrics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := baseEngine.run(gctx, "whatif", nil)
		base = m
		return err
	})
	g.Go(func() error {
		m, err := altEngine.run(gctx, "whatif", nil)
		variant = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return base, variant, nil
}

// fork deep-copies the engine's statutes, population and pending events
// into a new engine starting at from.
func (e *Engine) fork(from time.Time, extra *statute.Temporal, branch string) *Engine {
	statutes := make([]*statute.Temporal, 0, len(e.statutes)+1)
	for _, st := range e.statutes {
		statutes = append(statutes, st.Clone())
	}
	if extra != nil {
		statutes = append(statutes, extra.Clone())
	}

	pop := e.population.Clone()
	q := schedule.NewQueue()
	q.Schedule(e.queue.Pending()...)

	return &Engine{
		start:       from,
		end:         e.end,
		step:        e.step,
		statutes:    statutes,
		population:  pop,
		baseline:    pop.Clone(),
		queue:       q,
		evaluator:   e.evaluator,
		logger:      e.logger.With("branch", branch),
		obs:         e.obs,
		parallelism: e.parallelism,
	}
}
