// Package statute models versioned legal rules whose applicability is
// bounded by a half-open effective window and whose text changes through
// dated amendments.
package statute

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// EffectKind classifies what a rule does when it applies.
type EffectKind string

const (
	EffectGrant       EffectKind = "grant"
	EffectObligation  EffectKind = "obligation"
	EffectProhibition EffectKind = "prohibition"
	EffectStatus      EffectKind = "status"
)

// Effect is the consequence of a rule applying to an entity.
type Effect struct {
	Kind        EffectKind `json:"kind" yaml:"kind"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Rule is one version of a statute's text.
type Rule struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Version string `json:"version" yaml:"version"`
	// Condition is a CEL expression selecting the entities the rule applies to.
	// An empty condition applies to everyone.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	// Discretion is a CEL expression; when it holds the outcome is left to an
	// authority rather than granted automatically.
	Discretion string `json:"discretion,omitempty" yaml:"discretion,omitempty"`
	Effect     Effect `json:"effect" yaml:"effect"`
}

// SemVer parses the rule version.
func (r Rule) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("statute %s: invalid version %q: %w", r.ID, r.Version, err)
	}
	return v, nil
}

// Amendment replaces a statute's rule from Date onwards.
type Amendment struct {
	Date time.Time `json:"date"`
	Rule Rule      `json:"rule"`
}

// Temporal is a statute with its window and amendment list. A zero
// Effective or Expiry leaves that side of the window unbounded.
type Temporal struct {
	Base      Rule
	Effective time.Time
	Expiry    time.Time

	amendments []Amendment
}

// New creates an always-effective statute.
func New(base Rule) *Temporal {
	return &Temporal{Base: base}
}

// ID returns the statute identifier.
func (t *Temporal) ID() string { return t.Base.ID }

// EffectiveFrom sets the window start.
func (t *Temporal) EffectiveFrom(d time.Time) *Temporal {
	t.Effective = d
	return t
}

// ExpiresAt sets the exclusive window end.
func (t *Temporal) ExpiresAt(d time.Time) *Temporal {
	t.Expiry = d
	return t
}

// WithAmendment inserts an amendment, keeping the list sorted by date.
// Amendments sharing a date keep their insertion order.
func (t *Temporal) WithAmendment(date time.Time, rule Rule) *Temporal {
	i := sort.Search(len(t.amendments), func(i int) bool {
		return t.amendments[i].Date.After(date)
	})
	t.amendments = append(t.amendments, Amendment{})
	copy(t.amendments[i+1:], t.amendments[i:])
	t.amendments[i] = Amendment{Date: date, Rule: rule}
	return t
}

// Amendments returns the sorted amendment list.
func (t *Temporal) Amendments() []Amendment {
	return append([]Amendment(nil), t.amendments...)
}

// IsEffectiveAt reports whether d lies in [Effective, Expiry).
func (t *Temporal) IsEffectiveAt(d time.Time) bool {
	if !t.Effective.IsZero() && d.Before(t.Effective) {
		return false
	}
	if !t.Expiry.IsZero() && !d.Before(t.Expiry) {
		return false
	}
	return true
}

// VersionAt returns the latest amendment dated on or before d, else the base rule.
func (t *Temporal) VersionAt(d time.Time) Rule {
	rule := t.Base
	for _, a := range t.amendments {
		if a.Date.After(d) {
			break
		}
		rule = a.Rule
	}
	return rule
}

// Clone returns a deep copy.
func (t *Temporal) Clone() *Temporal {
	c := *t
	c.amendments = t.Amendments()
	return &c
}
