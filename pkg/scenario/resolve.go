package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/evaluate"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

type checker struct {
	cel *evaluate.CEL
}

func newChecker() (*checker, error) {
	c, err := evaluate.NewCEL()
	if err != nil {
		return nil, err
	}
	return &checker{cel: c}, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q", field, s)
	}
	return t, nil
}

func (c *checker) expressions(id string, r statute.Rule) error {
	var errs []error
	if r.Condition != "" {
		if err := c.cel.Check(r.Condition); err != nil {
			errs = append(errs, fmt.Errorf("statute %s %s condition: %w", id, r.Version, err))
		}
	}
	if r.Discretion != "" {
		if err := c.cel.Check(r.Discretion); err != nil {
			errs = append(errs, fmt.Errorf("statute %s %s discretion: %w", id, r.Version, err))
		}
	}
	return errors.Join(errs...)
}

// statute resolves one statute and its amendments. Amendments must be in
// strictly increasing date order and carry strictly increasing versions.
func (c *checker) statute(spec StatuteSpec) (*statute.Temporal, error) {
	base := statute.Rule{
		ID:         spec.ID,
		Title:      spec.Title,
		Version:    spec.Version,
		Condition:  spec.Condition,
		Discretion: spec.Discretion,
		Effect:     spec.Effect,
	}
	prevVersion, err := base.SemVer()
	if err != nil {
		return nil, err
	}
	if err := c.expressions(spec.ID, base); err != nil {
		return nil, err
	}

	effective, err := parseDate("statute "+spec.ID+" effective", spec.Effective)
	if err != nil {
		return nil, err
	}
	expiry, err := parseDate("statute "+spec.ID+" expiry", spec.Expiry)
	if err != nil {
		return nil, err
	}
	if !effective.IsZero() && !expiry.IsZero() && !expiry.After(effective) {
		return nil, fmt.Errorf("statute %s: expiry %s must be after effective %s", spec.ID, spec.Expiry, spec.Effective)
	}

	st := statute.New(base)
	st.Effective = effective
	st.Expiry = expiry

	prev := base
	var prevDate time.Time
	for i, am := range spec.Amendments {
		date, err := parseDate(fmt.Sprintf("statute %s amendment %d", spec.ID, i), am.Date)
		if err != nil {
			return nil, err
		}
		if !prevDate.IsZero() && !date.After(prevDate) {
			return nil, fmt.Errorf("statute %s amendment %s: dates must strictly increase", spec.ID, am.Date)
		}

		rule := prev
		rule.Version = am.Version
		if am.Title != "" {
			rule.Title = am.Title
		}
		if am.Condition != nil {
			rule.Condition = *am.Condition
		}
		if am.Discretion != nil {
			rule.Discretion = *am.Discretion
		}
		if am.Effect != nil {
			rule.Effect = *am.Effect
		}

		v, err := rule.SemVer()
		if err != nil {
			return nil, err
		}
		if !v.GreaterThan(prevVersion) {
			return nil, fmt.Errorf("statute %s amendment %s: version %s must be greater than %s",
				spec.ID, am.Date, v, prevVersion)
		}
		if err := c.expressions(spec.ID, rule); err != nil {
			return nil, err
		}

		st.WithAmendment(date, rule)
		prev, prevVersion, prevDate = rule, v, date
	}
	return st, nil
}

func agentState(spec AgentSpec) (*agent.State, error) {
	a := agent.New(spec.ID)

	birth, err := parseDate("agent "+spec.ID+" birth", spec.Birth)
	if err != nil {
		return nil, err
	}
	death, err := parseDate("agent "+spec.ID+" death", spec.Death)
	if err != nil {
		return nil, err
	}
	a.BirthDate = birth
	a.DeathDate = death

	for _, h := range spec.History {
		d, err := parseDate("agent "+spec.ID+" history", h.Date)
		if err != nil {
			return nil, err
		}
		a.SetAttribute(h.Key, h.Value, d)
	}
	for k, v := range spec.Attributes {
		a.Attributes[k] = v
	}
	return a, nil
}

func scheduled(spec EventSpec) (event.Event, error) {
	d, err := parseDate("event", spec.Date)
	if err != nil {
		return nil, err
	}
	return event.FromRecord(event.Record{
		Kind:    event.Kind(spec.Kind),
		Date:    d,
		AgentID: spec.Agent,
		Key:     spec.Key,
		New:     spec.Value,
	})
}

func projection(spec *ProjectionSpec) (*engine.ProjectionConfig, error) {
	if spec == nil {
		return nil, nil
	}
	cfg := &engine.ProjectionConfig{
		BirthRate:        spec.BirthRate,
		DeathRate:        spec.DeathRate,
		IncomeGrowthRate: spec.IncomeGrowthRate,
	}
	switch spec.Model {
	case "", "constant":
		cfg.Model = engine.Constant{}
	case "linear":
		cfg.Model = engine.Linear{}
	case "exponential":
		cfg.Model = engine.Exponential{Rate: spec.Rate}
	case "custom":
		cfg.Model = engine.CustomRate{RatePerStep: spec.Rate}
	default:
		return nil, fmt.Errorf("unknown projection model %q", spec.Model)
	}
	return cfg, nil
}

// resolve converts the document into engine inputs, collecting every problem.
func (s *Scenario) resolve() error {
	var errs []error
	var err error

	if s.start, err = parseDate("start", s.Doc.Start); err != nil {
		errs = append(errs, err)
	}
	if s.end, err = parseDate("end", s.Doc.End); err != nil {
		errs = append(errs, err)
	}
	if !s.start.IsZero() && !s.end.IsZero() && s.start.After(s.end) {
		errs = append(errs, fmt.Errorf("start %s is after end %s", s.Doc.Start, s.Doc.End))
	}
	if s.step, err = engine.ParseTimeStep(s.Doc.Step); err != nil {
		errs = append(errs, err)
	}

	c, err := newChecker()
	if err != nil {
		return err
	}
	seenStatutes := make(map[string]bool)
	for _, spec := range s.Doc.Statutes {
		if seenStatutes[spec.ID] {
			errs = append(errs, fmt.Errorf("duplicate statute id %q", spec.ID))
			continue
		}
		seenStatutes[spec.ID] = true
		st, err := c.statute(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.statutes = append(s.statutes, st)
	}

	seenAgents := make(map[string]bool)
	for _, spec := range s.Doc.Population.Agents {
		if seenAgents[spec.ID] {
			errs = append(errs, fmt.Errorf("duplicate agent id %q", spec.ID))
			continue
		}
		seenAgents[spec.ID] = true
		a, err := agentState(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.agents = append(s.agents, a)
	}

	for i, spec := range s.Doc.Events {
		ev, err := scheduled(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		s.events = append(s.events, ev)
	}

	if s.projection, err = projection(s.Doc.Projection); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
