package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
)

// Attributes read and written by demographic projection.
const (
	AttrAge    = "age"
	AttrIncome = "income"
)

var birthNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lexsim:projection:birth"))

// ProjectionModel projects an income forward by one step.
type ProjectionModel interface {
	project(income, baseline, years, growth float64) float64
}

// Constant leaves incomes unchanged.
type Constant struct{}

// Linear adds growth x years x the agent's earliest recorded income.
type Linear struct{}

// Exponential compounds income at Rate per year.
type Exponential struct {
	Rate float64
}

// CustomRate compounds income at RatePerStep regardless of step length.
type CustomRate struct {
	RatePerStep float64
}

func (Constant) project(income, _, _, _ float64) float64 { return income }

func (Linear) project(income, baseline, years, growth float64) float64 {
	return income + baseline*growth*years
}

func (m Exponential) project(income, _, years, _ float64) float64 {
	return income * math.Pow(1+m.Rate, years)
}

func (m CustomRate) project(income, _, _, _ float64) float64 {
	return income * (1 + m.RatePerStep)
}

// ProjectionConfig drives the demographic update applied before evaluation.
// Counts are deterministic: round(active x rate x elapsed years).
type ProjectionConfig struct {
	BirthRate        float64
	DeathRate        float64
	IncomeGrowthRate float64
	Model            ProjectionModel
}

// RunWithProjection runs the simulation with a demographic update on every
// step but the first. Ages advance only under a yearly step.
func (e *Engine) RunWithProjection(ctx context.Context, cfg ProjectionConfig) (*TemporalMetrics, error) {
	if cfg.Model == nil {
		cfg.Model = Constant{}
	}
	return e.run(ctx, "projection", &cfg)
}

func (e *Engine) project(ctx context.Context, current time.Time, cfg ProjectionConfig) []event.Event {
	years := e.step.YearFraction()
	var (
		events         []event.Event
		births, deaths int
		skipped        int
	)

	e.population.Update(func(tx agent.Txn) {
		var active []*agent.State
		tx.Each(func(s *agent.State) bool {
			if s.IsActiveAt(current) {
				active = append(active, s)
			}
			return true
		})

		for _, s := range active {
			if e.step == Year {
				if raw, ok := s.Attributes[AttrAge]; ok {
					age, err := strconv.Atoi(raw)
					if err != nil {
						skipped++
					} else {
						s.SetAttribute(AttrAge, strconv.Itoa(age+1), current)
					}
				}
			}

			raw, ok := s.Attributes[AttrIncome]
			if !ok {
				continue
			}
			income, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				skipped++
				continue
			}
			next := cfg.Model.project(income, baselineIncome(s, income), years, cfg.IncomeGrowthRate)
			if next != income {
				s.SetAttribute(AttrIncome, strconv.FormatFloat(next, 'f', 2, 64), current)
			}
		}

		deaths = min(int(math.Round(float64(len(active))*cfg.DeathRate*years)), len(active))
		births = int(math.Round(float64(len(active)) * cfg.BirthRate * years))

		for _, s := range active[:deaths] {
			s.Die(current)
			events = append(events, event.AgentDeath{AgentID: s.ID, At: current})
		}
		for i := 0; i < births; i++ {
			newborn := agent.New(e.nextBirthID(current))
			newborn.Born(current)
			tx.Put(newborn)
			events = append(events, event.AgentBirth{AgentID: newborn.ID, At: current})
		}
	})

	if skipped > 0 {
		e.logger.DebugContext(ctx, "skipped malformed numeric attributes",
			"date", current.Format(time.DateOnly), "count", skipped)
	}
	e.logger.DebugContext(ctx, "projection applied",
		"date", current.Format(time.DateOnly), "births", births, "deaths", deaths)
	return events
}

// baselineIncome returns the earliest-dated recorded income, or fallback.
func baselineIncome(s *agent.State, fallback float64) float64 {
	var (
		earliest agent.HistoryEntry
		found    bool
	)
	for _, h := range s.History {
		if h.Key != AttrIncome {
			continue
		}
		if !found || h.Date.Before(earliest.Date) {
			earliest = h
			found = true
		}
	}
	if !found {
		return fallback
	}
	v, err := strconv.ParseFloat(earliest.Value, 64)
	if err != nil {
		return fallback
	}
	return v
}

func (e *Engine) nextBirthID(date time.Time) string {
	e.births++
	name := fmt.Sprintf("%s#%d", date.Format(time.DateOnly), e.births)
	return uuid.NewSHA1(birthNamespace, []byte(name)).String()
}
