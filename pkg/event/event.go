// Package event defines the closed set of temporal events a simulation
// schedules and records.
package event

import (
	"fmt"
	"time"
)

// Kind names an event variant.
type Kind string

const (
	KindAgentBirth       Kind = "agent_birth"
	KindAgentDeath       Kind = "agent_death"
	KindAttributeChange  Kind = "attribute_change"
	KindStatuteEffective Kind = "statute_effective"
	KindStatuteExpired   Kind = "statute_expired"
	KindStatuteAmended   Kind = "statute_amended"
)

// Event is implemented only by the variants in this package.
type Event interface {
	Kind() Kind
	Date() time.Time
	sealed()
}

// AgentBirth activates an agent from At onwards.
type AgentBirth struct {
	AgentID string
	At      time.Time
}

// AgentDeath deactivates an agent from At onwards.
type AgentDeath struct {
	AgentID string
	At      time.Time
}

// AttributeChange records a new attribute value. Old is nil when the
// attribute had no prior value.
type AttributeChange struct {
	AgentID string
	At      time.Time
	Key     string
	Old     *string
	New     string
}

// StatuteEffective marks the opening of a statute's window.
type StatuteEffective struct {
	StatuteID string
	At        time.Time
}

// StatuteExpired marks the close of a statute's window.
type StatuteExpired struct {
	StatuteID string
	At        time.Time
}

// StatuteAmended marks an amendment taking effect.
type StatuteAmended struct {
	StatuteID string
	At        time.Time
	Version   string
}

func (AgentBirth) Kind() Kind       { return KindAgentBirth }
func (AgentDeath) Kind() Kind       { return KindAgentDeath }
func (AttributeChange) Kind() Kind  { return KindAttributeChange }
func (StatuteEffective) Kind() Kind { return KindStatuteEffective }
func (StatuteExpired) Kind() Kind   { return KindStatuteExpired }
func (StatuteAmended) Kind() Kind   { return KindStatuteAmended }

func (e AgentBirth) Date() time.Time       { return e.At }
func (e AgentDeath) Date() time.Time       { return e.At }
func (e AttributeChange) Date() time.Time  { return e.At }
func (e StatuteEffective) Date() time.Time { return e.At }
func (e StatuteExpired) Date() time.Time   { return e.At }
func (e StatuteAmended) Date() time.Time   { return e.At }

func (AgentBirth) sealed()       {}
func (AgentDeath) sealed()       {}
func (AttributeChange) sealed()  {}
func (StatuteEffective) sealed() {}
func (StatuteExpired) sealed()   {}
func (StatuteAmended) sealed()   {}

// Describe renders a one-line human description.
func Describe(e Event) string {
	date := e.Date().Format(time.DateOnly)
	switch ev := e.(type) {
	case AgentBirth:
		return fmt.Sprintf("%s: agent %s born", date, ev.AgentID)
	case AgentDeath:
		return fmt.Sprintf("%s: agent %s died", date, ev.AgentID)
	case AttributeChange:
		if ev.Old != nil {
			return fmt.Sprintf("%s: agent %s %s %q -> %q", date, ev.AgentID, ev.Key, *ev.Old, ev.New)
		}
		return fmt.Sprintf("%s: agent %s %s = %q", date, ev.AgentID, ev.Key, ev.New)
	case StatuteEffective:
		return fmt.Sprintf("%s: statute %s became effective", date, ev.StatuteID)
	case StatuteExpired:
		return fmt.Sprintf("%s: statute %s expired", date, ev.StatuteID)
	case StatuteAmended:
		return fmt.Sprintf("%s: statute %s amended to %s", date, ev.StatuteID, ev.Version)
	default:
		panic(fmt.Sprintf("event: unhandled variant %T", e))
	}
}
