package engine

import (
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/event"
	"github.com/Mindburn-Labs/lexsim/pkg/metrics"
)

// Snapshot summarizes one simulated date.
type Snapshot struct {
	Date           time.Time
	Metrics        *metrics.Summary
	ActiveAgents   int
	ActiveStatutes int
	// Events are the scheduled events processed on this step.
	Events []event.Event
}

// TrendPoint is a statute's effectiveness on one date.
type TrendPoint struct {
	Date          time.Time `json:"date"`
	Effectiveness float64   `json:"effectiveness"`
}

// TemporalMetrics is the output of a run.
type TemporalMetrics struct {
	// Snapshots are strictly ascending by date, one per step.
	Snapshots  []Snapshot
	Cumulative *metrics.Summary
	// Events is the full log: processed, lifecycle and projection events.
	Events []event.Event
	Trends map[string][]TrendPoint
}

func newTemporalMetrics() *TemporalMetrics {
	return &TemporalMetrics{
		Cumulative: metrics.NewSummary(),
		Trends:     make(map[string][]TrendPoint),
	}
}

func (m *TemporalMetrics) add(s Snapshot) {
	m.Snapshots = append(m.Snapshots, s)
	m.Cumulative.Merge(s.Metrics)
}

// Trend returns the effectiveness series for a statute.
func (m *TemporalMetrics) Trend(statuteID string) []TrendPoint {
	return m.Trends[statuteID]
}
