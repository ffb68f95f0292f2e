// Package engine runs time-stepped simulations of a population under a set
// of temporal statutes.
//
// Each step drains due events, resolves the effective statute versions and
// the living agents, evaluates every (agent, statute) pair and folds the
// outcomes into a snapshot. Retroactive and what-if modes reuse the same loop.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/evaluate"
	"github.com/Mindburn-Labs/lexsim/pkg/metrics"
	"github.com/Mindburn-Labs/lexsim/pkg/observability"
	"github.com/Mindburn-Labs/lexsim/pkg/schedule"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

// Engine owns the statutes and event queue of one simulation. The
// population may be read concurrently, but an Engine must not run
// concurrently with itself.
type Engine struct {
	start, end time.Time
	step       TimeStep
	statutes   []*statute.Temporal
	population *agent.Population
	// baseline is the population as built, restored by retroactive runs.
	baseline    *agent.Population
	queue       *schedule.Queue
	evaluator   evaluate.Evaluator
	logger      *slog.Logger
	obs         *observability.Provider
	parallelism int
	births      uint64
}

// Population returns the live population.
func (e *Engine) Population() *agent.Population { return e.population }

// Statutes returns copies of the current statute set.
func (e *Engine) Statutes() []*statute.Temporal {
	out := make([]*statute.Temporal, 0, len(e.statutes))
	for _, st := range e.statutes {
		out = append(out, st.Clone())
	}
	return out
}

// Start returns the first simulated date.
func (e *Engine) Start() time.Time { return e.start }

// End returns the last simulated date.
func (e *Engine) End() time.Time { return e.end }

// Step returns the granularity.
func (e *Engine) Step() TimeStep { return e.step }

// Run simulates every step from start to end inclusive. The context is
// checked between steps.
func (e *Engine) Run(ctx context.Context) (*TemporalMetrics, error) {
	return e.run(ctx, "run", nil)
}

func (e *Engine) run(ctx context.Context, mode string, proj *ProjectionConfig) (*TemporalMetrics, error) {
	ctx, done := e.obs.TrackOperation(ctx, "lexsim.run",
		attribute.String("lexsim.mode", mode),
		attribute.String("lexsim.step", e.step.String()),
	)
	out, err := e.loop(ctx, proj)
	done(err)
	return out, err
}

func (e *Engine) loop(ctx context.Context, proj *ProjectionConfig) (*TemporalMetrics, error) {
	out := newTemporalMetrics()
	if e.start.After(e.end) {
		e.logger.WarnContext(ctx, "start date after end date, nothing to simulate",
			"start", e.start.Format(time.DateOnly),
			"end", e.end.Format(time.DateOnly),
		)
		return out, nil
	}

	e.logger.InfoContext(ctx, "simulation started",
		"start", e.start.Format(time.DateOnly),
		"end", e.end.Format(time.DateOnly),
		"step", e.step.String(),
		"statutes", len(e.statutes),
		"agents", e.population.Len(),
		"pending_events", e.queue.Len(),
	)

	stride := e.step.Duration()
	prev := e.start.Add(-time.Nanosecond)
	index := 0
	for current := e.start; !current.After(e.end); current = current.Add(stride) {
		if err := ctx.Err(); err != nil {
			e.logger.WarnContext(ctx, "simulation cancelled", "date", current.Format(time.DateOnly), "error", err)
			return nil, err
		}
		snap, err := e.simulateStep(ctx, current, prev, index, proj, out)
		if err != nil {
			return nil, err
		}
		out.add(snap)
		prev = current
		index++
	}

	e.logger.InfoContext(ctx, "simulation finished",
		"snapshots", len(out.Snapshots),
		"evaluations", out.Cumulative.Total(),
		"deterministic_ratio", out.Cumulative.DeterministicRatio(),
	)
	return out, nil
}

func (e *Engine) simulateStep(ctx context.Context, current, prev time.Time, index int, proj *ProjectionConfig, out *TemporalMetrics) (Snapshot, error) {
	ctx, span := e.obs.StartSpan(ctx, "lexsim.step",
		trace.WithAttributes(attribute.String("lexsim.date", current.Format(time.DateOnly))),
	)
	defer span.End()
	began := time.Now()

	processed := e.queue.ProcessEvents(current, e.population)
	e.obs.RecordPendingEvents(ctx, -len(processed))
	out.Events = append(out.Events, processed...)
	for _, st := range e.statutes {
		out.Events = append(out.Events, st.Transitions(prev, current)...)
	}

	if proj != nil && index > 0 {
		out.Events = append(out.Events, e.project(ctx, current, *proj)...)
	}

	rules := e.activeRules(current)
	agents := e.population.ActiveAt(current)

	stepMetrics, err := e.evaluateStep(ctx, current, agents, rules)
	if err != nil {
		span.RecordError(err)
		return Snapshot{}, err
	}

	for _, r := range rules {
		out.Trends[r.ID] = append(out.Trends[r.ID], TrendPoint{
			Date:          current,
			Effectiveness: stepMetrics.Effectiveness(r.ID),
		})
	}

	e.obs.RecordStep(ctx, time.Since(began), len(agents), len(rules))
	e.obs.RecordEvaluations(ctx, evaluate.Deterministic.String(), stepMetrics.Deterministic)
	e.obs.RecordEvaluations(ctx, evaluate.Discretionary.String(), stepMetrics.Discretionary)
	e.obs.RecordEvaluations(ctx, evaluate.Void.String(), stepMetrics.Void)

	e.logger.DebugContext(ctx, "step simulated",
		"date", current.Format(time.DateOnly),
		"events", len(processed),
		"active_agents", len(agents),
		"active_statutes", len(rules),
		"evaluations", stepMetrics.Total(),
	)

	return Snapshot{
		Date:           current,
		Metrics:        stepMetrics,
		ActiveAgents:   len(agents),
		ActiveStatutes: len(rules),
		Events:         processed,
	}, nil
}

// activeRules resolves the version of every statute effective on date. The
// rule ID is pinned to the statute ID so amendments report under one key.
func (e *Engine) activeRules(date time.Time) []statute.Rule {
	rules := make([]statute.Rule, 0, len(e.statutes))
	for _, st := range e.statutes {
		if !st.IsEffectiveAt(date) {
			continue
		}
		r := st.VersionAt(date)
		r.ID = st.ID()
		rules = append(rules, r)
	}
	return rules
}

// evaluateStep evaluates the full agent x statute cross product. With
// parallelism the agents are partitioned across workers whose partial
// summaries are merged; the result is independent of the partitioning.
func (e *Engine) evaluateStep(ctx context.Context, date time.Time, agents []agent.View, rules []statute.Rule) (*metrics.Summary, error) {
	if len(agents) == 0 || len(rules) == 0 {
		return metrics.NewSummary(), nil
	}

	stamp := date.Format(time.DateOnly)
	for i := range agents {
		agents[i].Attributes[evaluate.DateAttribute] = stamp
	}

	workers := e.parallelism
	if workers > len(agents) {
		workers = len(agents)
	}
	if workers < 2 {
		return evaluateRange(ctx, e.evaluator, agents, rules), nil
	}

	parts := make([]*metrics.Summary, workers)
	chunk := (len(agents) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(agents))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[w] = evaluateRange(gctx, e.evaluator, agents[lo:hi], rules)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := metrics.NewSummary()
	for _, p := range parts {
		total.Merge(p)
	}
	return total, nil
}

func evaluateRange(ctx context.Context, ev evaluate.Evaluator, agents []agent.View, rules []statute.Rule) *metrics.Summary {
	s := metrics.NewSummary()
	for _, a := range agents {
		for _, r := range rules {
			s.Record(ev.Evaluate(ctx, a, r))
		}
	}
	return s
}
