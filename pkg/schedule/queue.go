// Package schedule provides the date-ordered event queue that drives a
// simulation.
package schedule

import (
	"container/heap"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/agent"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
)

// Scheduled is a queued event.
type Scheduled struct {
	Event       event.Event
	SequenceNum uint64
}

// eventHeap orders by date, then by insertion sequence.
type eventHeap []*Scheduled

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	di, dj := h[i].Event.Date(), h[j].Event.Date()
	if !di.Equal(dj) {
		return di.Before(dj)
	}
	return h[i].SequenceNum < h[j].SequenceNum
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Scheduled))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Queue holds pending events. Every scheduled event is also kept in a
// journal so the queue can be rewound and replayed.
type Queue struct {
	mu      sync.Mutex
	events  eventHeap
	journal []event.Event
	nextSeq uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{
		events:  make(eventHeap, 0),
		nextSeq: 1,
	}
	heap.Init(&q.events)
	return q
}

// Schedule enqueues events. Events sharing a date are drained in the order
// they were scheduled.
func (q *Queue) Schedule(events ...event.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ev := range events {
		q.push(ev)
		q.journal = append(q.journal, ev)
	}
}

func (q *Queue) push(ev event.Event) {
	heap.Push(&q.events, &Scheduled{Event: ev, SequenceNum: q.nextSeq})
	q.nextSeq++
}

// Due removes and returns every event dated on or before date, in order.
func (q *Queue) Due(date time.Time) []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []event.Event
	for q.events.Len() > 0 && !q.events[0].Event.Date().After(date) {
		due = append(due, heap.Pop(&q.events).(*Scheduled).Event)
	}
	return due
}

// ProcessEvents drains the events due on date and applies them to pop
// under a single write lock, so no reader observes a partial step.
func (q *Queue) ProcessEvents(date time.Time, pop *agent.Population) []event.Event {
	due := q.Due(date)
	if len(due) == 0 {
		return nil
	}
	pop.Update(func(tx agent.Txn) {
		for _, ev := range due {
			Apply(tx, ev)
		}
	})
	return due
}

// Pending returns queued events in drain order without removing them.
func (q *Queue) Pending() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	tmp := make(eventHeap, len(q.events))
	copy(tmp, q.events)
	out := make([]event.Event, 0, len(tmp))
	for tmp.Len() > 0 {
		out = append(out, heap.Pop(&tmp).(*Scheduled).Event)
	}
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Rewind discards pending events and re-queues everything ever scheduled,
// in the original scheduling order.
func (q *Queue) Rewind() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = q.events[:0]
	q.nextSeq = 1
	for _, ev := range q.journal {
		q.push(ev)
	}
}

// SnapshotHash returns a deterministic hash of the pending events.
func (q *Queue) SnapshotHash() (string, error) {
	pending := q.Pending()
	records := make([]event.Record, 0, len(pending))
	for _, ev := range pending {
		records = append(records, event.ToRecord(ev))
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshal pending events: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

// Apply mutates the population for one event. Statute lifecycle events
// carry no agent state and are ignored.
func Apply(tx agent.Txn, ev event.Event) {
	switch e := ev.(type) {
	case event.AgentBirth:
		tx.Ensure(e.AgentID).Born(e.At)
	case event.AgentDeath:
		tx.Ensure(e.AgentID).Die(e.At)
	case event.AttributeChange:
		tx.Ensure(e.AgentID).SetAttribute(e.Key, e.New, e.At)
	case event.StatuteEffective, event.StatuteExpired, event.StatuteAmended:
	}
}
