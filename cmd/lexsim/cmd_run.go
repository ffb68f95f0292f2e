package main

import (
	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/scenario"
)

// addOutputFlags registers the flags shared by commands that produce runs.
func addOutputFlags(cmd *cobra.Command, a *app, opts *outputOptions) {
	cmd.Flags().StringVar(&opts.archive, "archive", a.cfg.ArchiveDSN, "Archive results to a postgres:// URL or SQLite file")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish the report and metrics to the artifact store")
	cmd.Flags().BoolVar(&opts.attest, "attest", false, "Sign the metrics digest (requires LEXSIM_ATTEST_SECRET)")
}

func newRunCmd(a *app) *cobra.Command {
	var (
		opts     outputOptions
		project  bool
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and report per-step metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jsonOut, _ := cmd.Flags().GetBool("json")

			scen, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			mode := modeStandard
			proj, hasProjection := scen.Projection()
			if project {
				mode = modeProjection
				if !hasProjection {
					a.logger.WarnContext(ctx, "scenario has no projection section, using zero rates")
				}
			}

			res, err := a.cachedOrRun(ctx, mode, scen, opts.noCache, func() (*engine.TemporalMetrics, error) {
				eng, shutdown, err := a.build(ctx, scen, parallel)
				if err != nil {
					return nil, err
				}
				defer shutdown()
				if project {
					return eng.RunWithProjection(ctx, proj)
				}
				return eng.Run(ctx)
			})
			if err != nil {
				return err
			}
			return a.finish(ctx, res, opts, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "Apply the scenario's demographic projection each step")
	cmd.Flags().IntVar(&parallel, "parallel", a.cfg.Parallelism, "Evaluation workers per step")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")
	addOutputFlags(cmd, a, &opts)
	return cmd
}
