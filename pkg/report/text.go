package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/event"
)

// Direction is the coarse movement of a trend series.
type Direction string

const (
	Up   Direction = "↑"
	Down Direction = "↓"
	Flat Direction = "→"
)

// trendThreshold is the minimum change in effectiveness counted as movement.
const trendThreshold = 0.05

// TrendDirection compares the first and last points of a series.
func TrendDirection(series []engine.TrendPoint) Direction {
	if len(series) < 2 {
		return Flat
	}
	change := series[len(series)-1].Effectiveness - series[0].Effectiveness
	switch {
	case change > trendThreshold:
		return Up
	case change < -trendThreshold:
		return Down
	default:
		return Flat
	}
}

// Render writes a human-readable report.
func Render(w io.Writer, m *engine.TemporalMetrics) error {
	var b strings.Builder

	b.WriteString("=== Temporal Simulation Report ===\n\n")
	if len(m.Snapshots) > 0 {
		fmt.Fprintf(&b, "Period: %s to %s (%d steps)\n",
			m.Snapshots[0].Date.Format(time.DateOnly),
			m.Snapshots[len(m.Snapshots)-1].Date.Format(time.DateOnly),
			len(m.Snapshots))
	}
	fmt.Fprintf(&b, "Evaluations: %d (deterministic %d, discretionary %d, void %d)\n",
		m.Cumulative.Total(), m.Cumulative.Deterministic, m.Cumulative.Discretionary, m.Cumulative.Void)
	fmt.Fprintf(&b, "Deterministic ratio: %.1f%%\n\n", m.Cumulative.DeterministicRatio()*100)

	b.WriteString("Snapshots:\n")
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  DATE\tAGENTS\tSTATUTES\tEVENTS\tEVALS\tDETERMINISTIC")
	for _, s := range m.Snapshots {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%.1f%%\n",
			s.Date.Format(time.DateOnly),
			s.ActiveAgents,
			s.ActiveStatutes,
			len(s.Events),
			s.Metrics.Total(),
			s.Metrics.DeterministicRatio()*100,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(m.Events) > 0 {
		fmt.Fprintf(&b, "\nEvents (%d):\n", len(m.Events))
		for _, ev := range m.Events {
			fmt.Fprintf(&b, "  %s\n", event.Describe(ev))
		}
	}

	doc := NewDocument(m)
	if ids := doc.StatuteIDs(); len(ids) > 0 {
		b.WriteString("\nStatute trends:\n")
		for _, id := range ids {
			series := m.Trends[id]
			last := series[len(series)-1]
			fmt.Fprintf(&b, "  %s %s %.1f%% -> %.1f%% (%d points)\n",
				TrendDirection(series), id,
				series[0].Effectiveness*100, last.Effectiveness*100, len(series))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Compare writes a baseline-versus-alternative summary for a what-if run.
func Compare(w io.Writer, baseline, alternative *engine.TemporalMetrics) error {
	var b strings.Builder
	b.WriteString("=== What-if Comparison ===\n\n")

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  \tBASELINE\tALTERNATIVE\tDELTA")
	row := func(name string, base, alt uint64) {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%+d\n", name, base, alt, int64(alt)-int64(base))
	}
	row("evaluations", baseline.Cumulative.Total(), alternative.Cumulative.Total())
	row("deterministic", baseline.Cumulative.Deterministic, alternative.Cumulative.Deterministic)
	row("discretionary", baseline.Cumulative.Discretionary, alternative.Cumulative.Discretionary)
	row("void", baseline.Cumulative.Void, alternative.Cumulative.Void)
	fmt.Fprintf(tw, "  deterministic ratio\t%.1f%%\t%.1f%%\t%+.1f pp\n",
		baseline.Cumulative.DeterministicRatio()*100,
		alternative.Cumulative.DeterministicRatio()*100,
		(alternative.Cumulative.DeterministicRatio()-baseline.Cumulative.DeterministicRatio())*100,
	)
	if err := tw.Flush(); err != nil {
		return err
	}

	ids := NewDocument(alternative).StatuteIDs()
	if len(ids) > 0 {
		b.WriteString("\nStatute effectiveness (alternative):\n")
		for _, id := range ids {
			_, inBase := baseline.Trends[id]
			marker := ""
			if !inBase {
				marker = " (new)"
			}
			fmt.Fprintf(&b, "  %s %s%s %.1f%%\n",
				TrendDirection(alternative.Trends[id]), id, marker,
				alternative.Cumulative.Effectiveness(id)*100)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
