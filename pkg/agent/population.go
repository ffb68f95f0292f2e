package agent

import (
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Population is the shared agent map. Many readers or a single writer may
// hold it at once. Iteration follows insertion order so selections that
// depend on order are reproducible.
type Population struct {
	mu     sync.RWMutex
	agents map[string]*State
	order  []string
}

// NewPopulation creates an empty population.
func NewPopulation() *Population {
	return &Population{agents: make(map[string]*State)}
}

// Add inserts agents, replacing any existing agent with the same ID in place.
func (p *Population) Add(agents ...*State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx := Txn{p: p}
	for _, s := range agents {
		tx.Put(s)
	}
}

// Get returns a copy of the agent with id.
func (p *Population) Get(id string) (*State, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.agents[norm.NFC.String(id)]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Len returns the number of agents, living or dead.
func (p *Population) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// IDs returns agent ids in population order.
func (p *Population) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// ActiveAt returns views of the agents active on date, in population order.
func (p *Population) ActiveAt(date time.Time) []View {
	p.mu.RLock()
	defer p.mu.RUnlock()

	views := make([]View, 0, len(p.order))
	for _, id := range p.order {
		s := p.agents[id]
		if s.IsActiveAt(date) {
			views = append(views, s.View())
		}
	}
	return views
}

// Snapshot returns deep copies of every agent in population order.
func (p *Population) Snapshot() []*State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*State, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.agents[id].Clone())
	}
	return out
}

// Clone returns an independent deep copy.
func (p *Population) Clone() *Population {
	c := NewPopulation()
	c.Add(p.Snapshot()...)
	return c
}

// ReplaceWith overwrites the contents of p with a deep copy of src.
func (p *Population) ReplaceWith(src *Population) {
	agents := src.Snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.agents = make(map[string]*State, len(agents))
	p.order = p.order[:0]
	tx := Txn{p: p}
	for _, s := range agents {
		tx.Put(s)
	}
}

// Update runs fn while holding the write lock.
func (p *Population) Update(fn func(tx Txn)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(Txn{p: p})
}

// Txn is a mutable view of a Population, valid only inside Update.
type Txn struct {
	p *Population
}

// Get returns the live agent with id.
func (t Txn) Get(id string) (*State, bool) {
	s, ok := t.p.agents[norm.NFC.String(id)]
	return s, ok
}

// Ensure returns the agent with id, creating an inactive one if absent.
func (t Txn) Ensure(id string) *State {
	if s, ok := t.Get(id); ok {
		return s
	}
	s := New(id)
	s.Active = false
	t.Put(s)
	return s
}

// Put inserts or replaces an agent. Replacement keeps the original position.
func (t Txn) Put(s *State) {
	s.ID = norm.NFC.String(s.ID)
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	if _, exists := t.p.agents[s.ID]; !exists {
		t.p.order = append(t.p.order, s.ID)
	}
	t.p.agents[s.ID] = s
}

// Each calls fn for every agent in population order until fn returns false.
func (t Txn) Each(fn func(s *State) bool) {
	for _, id := range t.p.order {
		if !fn(t.p.agents[id]) {
			return
		}
	}
}
