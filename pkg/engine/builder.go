package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/evaluate"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
	"github.com/Mindburn-Labs/lexsim/pkg/observability"
	"github.com/Mindburn-Labs/lexsim/pkg/schedule"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

var (
	// ErrPeriodRequired is returned when no start or end date was given.
	ErrPeriodRequired = errors.New("engine: start and end dates are required")
	// ErrInvalidPeriod is returned when start is after end.
	ErrInvalidPeriod = errors.New("engine: start date is after end date")
)

// Builder assembles an Engine.
type Builder struct {
	start, end  time.Time
	step        TimeStep
	statutes    []*statute.Temporal
	agents      []*agent.State
	declared    []string
	events      []event.Event
	evaluator   evaluate.Evaluator
	logger      *slog.Logger
	obs         *observability.Provider
	parallelism int
}

// NewBuilder returns a builder with a monthly step and sequential evaluation.
func NewBuilder() *Builder {
	return &Builder{step: Month, parallelism: 1}
}

// Period sets the inclusive simulation range.
func (b *Builder) Period(start, end time.Time) *Builder {
	b.start, b.end = start, end
	return b
}

// Step sets the time granularity.
func (b *Builder) Step(s TimeStep) *Builder {
	b.step = s
	return b
}

// Statutes adds statutes to the initial set.
func (b *Builder) Statutes(st ...*statute.Temporal) *Builder {
	b.statutes = append(b.statutes, st...)
	return b
}

// Population adds agents. When declared is non-empty only those attributes
// are copied into the engine; otherwise every attribute is.
func (b *Builder) Population(agents []*agent.State, declared ...string) *Builder {
	b.agents = append(b.agents, agents...)
	b.declared = append(b.declared, declared...)
	return b
}

// Schedule pre-schedules events.
func (b *Builder) Schedule(events ...event.Event) *Builder {
	b.events = append(b.events, events...)
	return b
}

// Evaluator sets the rule evaluator. The default is the CEL evaluator.
func (b *Builder) Evaluator(ev evaluate.Evaluator) *Builder {
	b.evaluator = ev
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Observability sets the telemetry provider.
func (b *Builder) Observability(p *observability.Provider) *Builder {
	b.obs = p
	return b
}

// Parallelism sets how many workers evaluate each step. Values below 2
// evaluate sequentially.
func (b *Builder) Parallelism(n int) *Builder {
	b.parallelism = n
	return b
}

// Build validates the configuration and returns a ready engine. Inputs are
// copied; later changes to them do not affect the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.start.IsZero() || b.end.IsZero() {
		return nil, ErrPeriodRequired
	}
	if b.start.After(b.end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod,
			b.start.Format(time.DateOnly), b.end.Format(time.DateOnly))
	}
	if !b.step.Valid() {
		return nil, fmt.Errorf("engine: invalid time step %d", int(b.step))
	}

	statutes := make([]*statute.Temporal, 0, len(b.statutes))
	for i, st := range b.statutes {
		if st == nil {
			return nil, fmt.Errorf("engine: statute %d is nil", i)
		}
		statutes = append(statutes, st.Clone())
	}

	ev := b.evaluator
	if ev == nil {
		cel, err := evaluate.NewCEL()
		if err != nil {
			return nil, err
		}
		ev = cel
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := b.obs
	if obs == nil {
		obs = observability.Disabled()
	}

	pop := agent.NewPopulation()
	keep := declaredSet(b.declared)
	for _, a := range b.agents {
		pop.Add(ingest(a, keep, b.start))
	}

	q := schedule.NewQueue()
	q.Schedule(b.events...)
	obs.RecordPendingEvents(context.Background(), q.Len())

	return &Engine{
		start:       b.start,
		end:         b.end,
		step:        b.step,
		statutes:    statutes,
		population:  pop,
		baseline:    pop.Clone(),
		queue:       q,
		evaluator:   ev,
		logger:      logger.With("component", "engine"),
		obs:         obs,
		parallelism: b.parallelism,
	}, nil
}

func declaredSet(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// ingest copies src keeping only declared attributes. History is replayed
// in order; current values without history are recorded at start.
func ingest(src *agent.State, keep map[string]bool, start time.Time) *agent.State {
	allowed := func(k string) bool { return keep == nil || keep[k] }

	dst := agent.New(src.ID)
	dst.Active = src.Active
	dst.BirthDate = src.BirthDate
	dst.DeathDate = src.DeathDate

	for _, h := range src.History {
		if allowed(h.Key) {
			dst.SetAttribute(h.Key, h.Value, h.Date)
		}
	}

	keys := make([]string, 0, len(src.Attributes))
	for k := range src.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := src.Attributes[k]
		if cur, ok := dst.Attributes[k]; allowed(k) && (!ok || cur != v) {
			dst.SetAttribute(k, v, start)
		}
	}
	return dst
}
