// Package metrics accumulates rule evaluation outcomes. Summaries form a
// commutative monoid under Merge, so partial results computed in any order
// or in parallel fold to the same total.
package metrics

import (
	"sort"

	"github.com/Mindburn-Labs/lexsim/pkg/evaluate"
)

// Counts tallies outcomes.
type Counts struct {
	Deterministic uint64 `json:"deterministic"`
	Discretionary uint64 `json:"discretionary"`
	Void          uint64 `json:"void"`
}

// Total returns the number of recorded applications.
func (c Counts) Total() uint64 {
	return c.Deterministic + c.Discretionary + c.Void
}

func (c *Counts) add(o evaluate.Outcome) {
	switch o {
	case evaluate.Deterministic:
		c.Deterministic++
	case evaluate.Discretionary:
		c.Discretionary++
	default:
		c.Void++
	}
}

func (c *Counts) merge(o Counts) {
	c.Deterministic += o.Deterministic
	c.Discretionary += o.Discretionary
	c.Void += o.Void
}

// Summary holds overall and per-statute outcome counts.
type Summary struct {
	Counts
	ByStatute map[string]Counts `json:"by_statute"`
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{ByStatute: make(map[string]Counts)}
}

// Record adds one classified result.
func (s *Summary) Record(r evaluate.Result) {
	s.Counts.add(r.Outcome)
	c := s.ByStatute[r.StatuteID]
	c.add(r.Outcome)
	s.ByStatute[r.StatuteID] = c
}

// Merge folds o into s.
func (s *Summary) Merge(o *Summary) {
	if o == nil {
		return
	}
	s.Counts.merge(o.Counts)
	for id, oc := range o.ByStatute {
		c := s.ByStatute[id]
		c.merge(oc)
		s.ByStatute[id] = c
	}
}

// Clone returns an independent copy.
func (s *Summary) Clone() *Summary {
	c := NewSummary()
	c.Merge(s)
	return c
}

// DeterministicRatio is the share of applications resolved deterministically.
// It is zero when nothing was recorded.
func (s *Summary) DeterministicRatio() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Deterministic) / float64(total)
}

// Effectiveness is the share of a statute's applications that produced an
// effect, deterministic or discretionary. It is zero for unknown statutes.
func (s *Summary) Effectiveness(statuteID string) float64 {
	c, ok := s.ByStatute[statuteID]
	if !ok || c.Total() == 0 {
		return 0
	}
	return float64(c.Deterministic+c.Discretionary) / float64(c.Total())
}

// StatuteIDs returns the statutes with recorded applications, sorted.
func (s *Summary) StatuteIDs() []string {
	ids := make([]string, 0, len(s.ByStatute))
	for id := range s.ByStatute {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal reports whether two summaries hold the same counts.
func (s *Summary) Equal(o *Summary) bool {
	if s.Counts != o.Counts || len(s.ByStatute) != len(o.ByStatute) {
		return false
	}
	for id, c := range s.ByStatute {
		if o.ByStatute[id] != c {
			return false
		}
	}
	return true
}
