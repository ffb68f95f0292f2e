package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/report"
	"github.com/Mindburn-Labs/lexsim/pkg/store"
)

type runSummary struct {
	ID            string `json:"id"`
	Scenario      string `json:"scenario"`
	Mode          string `json:"mode"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Step          string `json:"step"`
	CreatedAt     string `json:"created_at"`
	Deterministic uint64 `json:"deterministic"`
	Discretionary uint64 `json:"discretionary"`
	Void          uint64 `json:"void"`
}

type snapshotSummary struct {
	Date           string `json:"date"`
	ActiveAgents   int    `json:"active_agents"`
	ActiveStatutes int    `json:"active_statutes"`
	Events         int    `json:"events"`
	Deterministic  uint64 `json:"deterministic"`
	Discretionary  uint64 `json:"discretionary"`
	Void           uint64 `json:"void"`
}

type runDetail struct {
	runSummary
	Digest    string                         `json:"digest"`
	Snapshots []snapshotSummary              `json:"snapshots"`
	Trends    map[string][]engine.TrendPoint `json:"trends"`
}

func summarize(r store.Run) runSummary {
	return runSummary{
		ID:            r.ID,
		Scenario:      r.Scenario,
		Mode:          r.Mode,
		Start:         r.Start.Format(time.DateOnly),
		End:           r.End.Format(time.DateOnly),
		Step:          r.Step,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		Deterministic: r.Counts.Deterministic,
		Discretionary: r.Counts.Discretionary,
		Void:          r.Counts.Void,
	}
}

func openArchive(cmd *cobra.Command, dsn string) (*store.SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("no archive configured (use --archive or LEXSIM_ARCHIVE_DSN)")
	}
	return store.Open(cmd.Context(), dsn)
}

func newRunsCmd(a *app) *cobra.Command {
	var (
		dsn   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openArchive(cmd, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				out := make([]runSummary, 0, len(runs))
				for _, r := range runs {
					out = append(out, summarize(r))
				}
				return json.NewEncoder(a.stdout).Encode(out)
			}

			if len(runs) == 0 {
				_, err := fmt.Fprintln(a.stdout, "No archived runs.")
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tMODE\tPERIOD\tEVALS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s..%s\t%d\t%s\n",
					r.ID, r.Scenario, r.Mode,
					r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly),
					r.Counts.Total(), r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&dsn, "archive", a.cfg.ArchiveDSN, "Archive to read: a postgres:// URL or SQLite file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.AddCommand(newRunsShowCmd(a, &dsn))
	return cmd
}

func newRunsShowCmd(a *app, dsn *string) *cobra.Command {
	var statuteID string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show an archived run's snapshots and statute trends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openArchive(cmd, *dsn)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			run, err := s.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			rows, err := s.Snapshots(ctx, run.ID)
			if err != nil {
				return err
			}

			var doc report.Document
			if err := json.Unmarshal(run.Document, &doc); err != nil {
				return fmt.Errorf("decode run %s document: %w", run.ID, err)
			}
			ids := doc.StatuteIDs()
			if statuteID != "" {
				if _, ok := doc.Trends[statuteID]; !ok {
					return fmt.Errorf("run %s has no trend for statute %q", run.ID, statuteID)
				}
				ids = []string{statuteID}
			}
			trends := make(map[string][]engine.TrendPoint, len(ids))
			for _, id := range ids {
				series, err := s.Trend(ctx, run.ID, id)
				if err != nil {
					return err
				}
				trends[id] = series
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				out := runDetail{
					runSummary: summarize(run),
					Digest:     run.Digest,
					Snapshots:  make([]snapshotSummary, 0, len(rows)),
					Trends:     trends,
				}
				for _, r := range rows {
					out.Snapshots = append(out.Snapshots, snapshotSummary{
						Date:           r.Date.Format(time.DateOnly),
						ActiveAgents:   r.ActiveAgents,
						ActiveStatutes: r.ActiveStatutes,
						Events:         r.Events,
						Deterministic:  r.Counts.Deterministic,
						Discretionary:  r.Counts.Discretionary,
						Void:           r.Counts.Void,
					})
				}
				return json.NewEncoder(a.stdout).Encode(out)
			}

			fmt.Fprintf(a.stdout, "Run %s (%s)\nScenario: %s, %s..%s by %s\nEvaluations: %d (deterministic %d, discretionary %d, void %d)\n\n",
				run.ID, run.Mode, run.Scenario,
				run.Start.Format(time.DateOnly), run.End.Format(time.DateOnly), run.Step,
				run.Counts.Total(), run.Counts.Deterministic, run.Counts.Discretionary, run.Counts.Void)

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tAGENTS\tSTATUTES\tEVENTS\tEVALS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
					r.Date.Format(time.DateOnly), r.ActiveAgents, r.ActiveStatutes, r.Events, r.Counts.Total())
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, id := range ids {
				series := trends[id]
				fmt.Fprintf(a.stdout, "\n%s %s\n", report.TrendDirection(series), id)
				for _, p := range series {
					fmt.Fprintf(a.stdout, "  %s %.1f%%\n", p.Date.Format(time.DateOnly), p.Effectiveness*100)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statuteID, "statute", "", "Show only this statute's trend")
	return cmd
}
