package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/lexsim/pkg/report"
	"github.com/Mindburn-Labs/lexsim/pkg/scenario"
	"github.com/Mindburn-Labs/lexsim/pkg/statute"
)

// alternativeFlags are shared by whatif and retro.
type alternativeFlags struct {
	statutePath string
	from        string
	parallel    int
}

func (f *alternativeFlags) register(cmd *cobra.Command, a *app) {
	cmd.Flags().StringVar(&f.statutePath, "statute", "", "Statute YAML to introduce")
	cmd.Flags().StringVar(&f.from, "from", "", "Date the statute applies from (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.parallel, "parallel", a.cfg.Parallelism, "Evaluation workers per step")
	_ = cmd.MarkFlagRequired("statute")
	_ = cmd.MarkFlagRequired("from")
}

func (f *alternativeFlags) load(scenarioPath string) (*scenario.Scenario, *statute.Temporal, time.Time, error) {
	from, err := time.Parse(time.DateOnly, f.from)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("invalid --from date %q: %w", f.from, err)
	}
	scen, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	alt, err := scenario.LoadStatute(f.statutePath)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	for _, st := range scen.Statutes() {
		if st.ID() == alt.ID() {
			return nil, nil, time.Time{}, fmt.Errorf("statute %q already exists in scenario %s", alt.ID(), scen.Doc.Name)
		}
	}
	return scen, alt, from, nil
}

func newWhatIfCmd(a *app) *cobra.Command {
	var (
		flags   alternativeFlags
		archive string
	)
	cmd := &cobra.Command{
		Use:   "whatif <scenario.yaml>",
		Short: "Compare the scenario with and without an additional statute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jsonOut, _ := cmd.Flags().GetBool("json")

			scen, alt, from, err := flags.load(args[0])
			if err != nil {
				return err
			}
			eng, shutdown, err := a.build(ctx, scen, flags.parallel)
			if err != nil {
				return err
			}
			defer shutdown()

			baseline, alternative, err := eng.WhatIf(ctx, alt, from)
			if err != nil {
				return err
			}

			base, err := complete(modeBaseline, scen, baseline)
			if err != nil {
				return err
			}
			other, err := complete(modeAlternative, scen, alternative)
			if err != nil {
				return err
			}
			if archive != "" {
				if err := a.archive(ctx, archive, base, other); err != nil {
					return err
				}
			}

			if jsonOut {
				return json.NewEncoder(a.stdout).Encode(map[string]any{
					"scenario":    scen.Doc.Name,
					"statute":     alt.ID(),
					"from":        from.Format(time.DateOnly),
					"baseline":    json.RawMessage(base.Canonical),
					"alternative": json.RawMessage(other.Canonical),
				})
			}

			var buf bytes.Buffer
			if err := report.Compare(&buf, baseline, alternative); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%s\nStatute %s introduced from %s\n",
				buf.String(), alt.ID(), from.Format(time.DateOnly))
			return err
		},
	}
	flags.register(cmd, a)
	cmd.Flags().StringVar(&archive, "archive", a.cfg.ArchiveDSN, "Archive both branches to a postgres:// URL or SQLite file")
	return cmd
}

func newRetroCmd(a *app) *cobra.Command {
	var (
		flags alternativeFlags
		opts  outputOptions
	)
	cmd := &cobra.Command{
		Use:   "retro <scenario.yaml>",
		Short: "Rerun the scenario with a statute applied retroactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jsonOut, _ := cmd.Flags().GetBool("json")

			scen, st, from, err := flags.load(args[0])
			if err != nil {
				return err
			}
			eng, shutdown, err := a.build(ctx, scen, flags.parallel)
			if err != nil {
				return err
			}
			defer shutdown()

			m, err := eng.ApplyRetroactive(ctx, st, from)
			if err != nil {
				return err
			}
			res, err := complete(modeRetroactive, scen, m)
			if err != nil {
				return err
			}
			return a.finish(ctx, res, opts, jsonOut)
		},
	}
	flags.register(cmd, a)
	addOutputFlags(cmd, a, &opts)
	return cmd
}
