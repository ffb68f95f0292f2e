// Package report renders and fingerprints simulation output.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
	"github.com/Mindburn-Labs/lexsim/pkg/metrics"
)

// Document is the serializable form of TemporalMetrics.
type Document struct {
	Snapshots  []SnapshotDoc                  `json:"snapshots"`
	Cumulative *metrics.Summary               `json:"cumulative"`
	Events     []event.Record                 `json:"events"`
	Trends     map[string][]engine.TrendPoint `json:"trends"`
}

// SnapshotDoc is the serializable form of a snapshot.
type SnapshotDoc struct {
	Date           string           `json:"date"`
	Metrics        *metrics.Summary `json:"metrics"`
	ActiveAgents   int              `json:"active_agents"`
	ActiveStatutes int              `json:"active_statutes"`
	Events         int              `json:"events"`
}

// NewDocument converts run output into its serializable form.
func NewDocument(m *engine.TemporalMetrics) *Document {
	doc := &Document{
		Snapshots:  make([]SnapshotDoc, 0, len(m.Snapshots)),
		Cumulative: m.Cumulative,
		Events:     make([]event.Record, 0, len(m.Events)),
		Trends:     m.Trends,
	}
	for _, s := range m.Snapshots {
		doc.Snapshots = append(doc.Snapshots, SnapshotDoc{
			Date:           s.Date.Format(time.DateOnly),
			Metrics:        s.Metrics,
			ActiveAgents:   s.ActiveAgents,
			ActiveStatutes: s.ActiveStatutes,
			Events:         len(s.Events),
		})
	}
	for _, ev := range m.Events {
		doc.Events = append(doc.Events, event.ToRecord(ev))
	}
	return doc
}

// Canonical returns the RFC 8785 canonical JSON of the document.
func (d *Document) Canonical() ([]byte, error) {
	for id, series := range d.Trends {
		for _, p := range series {
			if math.IsNaN(p.Effectiveness) || math.IsInf(p.Effectiveness, 0) {
				return nil, fmt.Errorf("trend %s: non-finite effectiveness on %s", id, p.Date.Format(time.DateOnly))
			}
		}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize document: %w", err)
	}
	return canonical, nil
}

// Digest returns "sha256:<hex>" over the canonical document.
func (d *Document) Digest() (string, error) {
	canonical, err := d.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// StatuteIDs returns the statutes with a trend series, sorted.
func (d *Document) StatuteIDs() []string {
	ids := make([]string, 0, len(d.Trends))
	for id := range d.Trends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
