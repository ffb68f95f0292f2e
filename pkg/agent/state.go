// Package agent holds per-agent identity, activity windows and the
// append-only attribute history that temporal queries resolve against.
package agent

import (
	"time"

	"golang.org/x/text/unicode/norm"
)

// HistoryEntry is one recorded attribute assignment.
type HistoryEntry struct {
	Date  time.Time `json:"date"`
	Key   string    `json:"key"`
	Value string    `json:"value"`
}

// State is a single agent. A zero BirthDate or DeathDate means the bound is absent.
type State struct {
	ID         string            `json:"id"`
	Active     bool              `json:"active"`
	BirthDate  time.Time         `json:"birth_date,omitempty"`
	DeathDate  time.Time         `json:"death_date,omitempty"`
	Attributes map[string]string `json:"attributes"`
	History    []HistoryEntry    `json:"history"`
}

// New creates an active agent with no attributes.
func New(id string) *State {
	return &State{
		ID:         norm.NFC.String(id),
		Active:     true,
		Attributes: make(map[string]string),
	}
}

// SetAttribute appends a history entry and overwrites the current value.
// Dates are not checked for order: Attributes always reflects the most
// recent call, while AttributeAt resolves by date.
func (s *State) SetAttribute(key, value string, date time.Time) {
	key = norm.NFC.String(key)
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.History = append(s.History, HistoryEntry{Date: date, Key: key, Value: value})
	s.Attributes[key] = value
}

// AttributeAt returns the value of the entry for key with the greatest
// date not after date. Among entries with equal dates the later append wins.
func (s *State) AttributeAt(key string, date time.Time) (string, bool) {
	key = norm.NFC.String(key)

	var (
		best  HistoryEntry
		found bool
	)
	for _, h := range s.History {
		if h.Key != key || h.Date.After(date) {
			continue
		}
		if !found || !h.Date.Before(best.Date) {
			best = h
			found = true
		}
	}
	return best.Value, found
}

// IsActiveAt reports whether the agent is alive on date: the active flag is
// set, date is not before birth and date is strictly before death.
func (s *State) IsActiveAt(date time.Time) bool {
	if !s.Active {
		return false
	}
	if !s.BirthDate.IsZero() && date.Before(s.BirthDate) {
		return false
	}
	if !s.DeathDate.IsZero() && !date.Before(s.DeathDate) {
		return false
	}
	return true
}

// Born marks the agent as born on date.
func (s *State) Born(date time.Time) {
	s.BirthDate = date
	s.Active = true
}

// Die marks the agent as dead on date. The record is kept.
func (s *State) Die(date time.Time) {
	s.DeathDate = date
	s.Active = false
}

// View returns a read-only copy of the agent's current attributes.
func (s *State) View() View {
	attrs := make(map[string]string, len(s.Attributes)+1)
	for k, v := range s.Attributes {
		attrs[k] = v
	}
	return View{ID: s.ID, Attributes: attrs}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Attributes = make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		c.Attributes[k] = v
	}
	c.History = append([]HistoryEntry(nil), s.History...)
	return &c
}

// View is the transient entity handed to rule evaluation.
type View struct {
	ID         string
	Attributes map[string]string
}
